package chat

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"roomify/logger"
	"roomify/module/chat/model"
	"roomify/service/storage"
	"roomify/tools/errs"
	"roomify/tools/ids"
	"roomify/tools/safe"
	"roomify/tools/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type ServerOptions struct {
	JwtSecret     []byte
	BroadcastRoom string
	Store         Store
	Dedup         storage.SendDeduper
	FanWorkers    int
	FanQueue      int
}

// Server owns the realtime layer: presence registry, room index, dispatcher
// and the fan-out pool. One instance per process.
type Server struct {
	jwtOpts       security.Options
	broadcastRoom string

	conns *ConnManager
	rooms *Rooms
	fan   *Fanout
	disp  *Dispatcher
	store Store
	dedup storage.SendDeduper

	convLocks sync.Map // conversationID -> *sync.Mutex
}

func NewServer(opts ServerOptions) *Server {
	if opts.FanWorkers <= 0 {
		opts.FanWorkers = 4
	}
	if opts.FanQueue <= 0 {
		opts.FanQueue = 1024
	}
	if opts.BroadcastRoom == "" {
		opts.BroadcastRoom = "general"
	}
	return &Server{
		jwtOpts:       security.DefaultOptions(opts.JwtSecret),
		broadcastRoom: opts.BroadcastRoom,
		conns:         NewConnManager(),
		rooms:         NewRooms(),
		fan:           NewFanout(opts.FanWorkers, opts.FanQueue),
		disp:          NewDispatcher(),
		store:         opts.Store,
		dedup:         opts.Dedup,
	}
}

func (s *Server) Disp() *Dispatcher          { return s.disp }
func (s *Server) ConnMgr() *ConnManager      { return s.conns }
func (s *Server) Rooms() *Rooms              { return s.rooms }
func (s *Server) Store() Store               { return s.store }
func (s *Server) Dedup() storage.SendDeduper { return s.dedup }
func (s *Server) BroadcastRoomID() string    { return s.broadcastRoom }

// ConvLock returns the conversation's mutex. The send path's persist and
// counter increments and the read path's bulk update and counter reset take
// the same lock, so neither sequence interleaves the other. Entries are
// never evicted; the map grows with the conversations touched over the
// process lifetime.
func (s *Server) ConvLock(conversationID string) *sync.Mutex {
	v, _ := s.convLocks.LoadOrStore(conversationID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// HandleWS authenticates and upgrades an incoming connection, then runs its
// read loop. The bearer credential travels out-of-band: `?token=` query or
// Authorization header, never as a protocol frame.
func (s *Server) HandleWS(c *gin.Context) {
	token := bearerToken(c)
	userID, err := security.Verify(s.jwtOpts, token)
	if err != nil {
		// refused before any handler runs; terminal for this attempt
		logger.Infof("[ws] handshake rejected: %v", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token is not valid"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), userID, ws)
	safe.SafeGo(client.WritePump)

	s.onConnect(client)
	defer s.onDisconnect(client)

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed user=%s conn=%s", client.UserID, client.ConnID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout user=%s conn=%s err=%v", client.UserID, client.ConnID, rerr)
			} else {
				logger.Infof("[ws] read err user=%s conn=%s err=%v", client.UserID, client.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame user=%s err=%v sample=%q", client.UserID, perr, sample)
			continue
		}

		if err := s.disp.Dispatch(&Context{S: s}, frame, client); err != nil {
			if ce := errs.Code(err); ce != nil {
				s.PushError(client, ce)
			}
			logger.Infof("[ws] handler err user=%s event=%s err=%v", client.UserID, frame.Event, err)
		}
	}
}

func bearerToken(c *gin.Context) string {
	if t := strings.TrimSpace(c.Query("token")); t != "" {
		return t
	}
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

func (s *Server) onConnect(client *Client) {
	if displaced := s.conns.Register(client); displaced != nil {
		// stale session for the same identity is silently displaced
		logger.Infof("[presence] displacing session user=%s old=%s new=%s",
			client.UserID, displaced.ConnID, client.ConnID)
		s.rooms.LeaveAll(displaced)
		displaced.Close()
	}

	// durable presence write is best-effort: roster broadcast proceeds
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.MarkOnline(ctx, client.UserID); err != nil {
		logger.Errorf("[presence] mark online failed user=%s err=%v", client.UserID, err)
	}

	s.rooms.Join(client, s.broadcastRoom)
	s.BroadcastRoster()
}

func (s *Server) onDisconnect(client *Client) {
	client.Close()
	s.rooms.LeaveAll(client)

	// a displaced session's exit must not mark its replacement offline
	if !s.conns.Unregister(client) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.MarkOffline(ctx, client.UserID, time.Now()); err != nil {
		logger.Errorf("[presence] mark offline failed user=%s err=%v", client.UserID, err)
	}

	s.BroadcastRoster()
}

// BroadcastRoster pushes the full online-identity list to every session.
func (s *Server) BroadcastRoster() {
	payload, err := BuildFrame(EvOnlineUsers, s.conns.Snapshot())
	if err != nil {
		logger.Errorf("[presence] roster encode: %v", err)
		return
	}
	s.fan.Broadcast(s.broadcastRoom, s.conns.All(), payload)
}

// BroadcastRoom fans an event out to every subscriber of roomID, minus
// except (nil to include all).
func (s *Server) BroadcastRoom(roomID string, except *Client, event string, data any) {
	payload, err := BuildFrame(event, data)
	if err != nil {
		logger.Errorf("[ws] encode %s: %v", event, err)
		return
	}
	s.fan.Broadcast(roomID, s.rooms.Members(roomID, except), payload)
}

// PushToUser delivers an event to the identity's own connection, bypassing
// rooms. Returns false when the identity is offline (skipped, not queued).
func (s *Server) PushToUser(userID, event string, data any) bool {
	client, ok := s.conns.Lookup(userID)
	if !ok {
		return false
	}
	payload, err := BuildFrame(event, data)
	if err != nil {
		logger.Errorf("[ws] encode %s: %v", event, err)
		return false
	}
	client.Enqueue(payload)
	return true
}

// PushError reports a rejected operation to the offending session only.
func (s *Server) PushError(c *Client, ce *errs.CodeError) {
	payload, err := BuildFrame(EvError, ErrorPayload{Code: ce.Code, Msg: ce.Msg})
	if err != nil {
		return
	}
	c.Enqueue(payload)
}

// PopulateMessage fills sender and reply display fields for transport.
func (s *Server) PopulateMessage(ctx context.Context, msg *model.Message) (*model.MessageView, error) {
	sender, err := s.store.GetUser(ctx, msg.SenderID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	var reply *model.Message
	var replySender *model.User
	if msg.ReplyTo != "" {
		reply, err = s.store.GetMessage(ctx, msg.ReplyTo)
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		if reply != nil {
			replySender, err = s.store.GetUser(ctx, reply.SenderID)
			if err != nil && err != ErrNotFound {
				return nil, err
			}
		}
	}
	return model.NewMessageView(msg, sender, reply, replySender), nil
}

// PopulateConversation loads participants and the last message for the
// conversation object pushed to clients.
func (s *Server) PopulateConversation(ctx context.Context, conv *model.Conversation) (*model.ConversationView, error) {
	participants, err := s.store.GetUsers(ctx, conv.Participants)
	if err != nil {
		return nil, err
	}
	var last *model.MessageView
	if conv.LastMessageID != "" {
		msg, err := s.store.GetMessage(ctx, conv.LastMessageID)
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		if msg != nil {
			last, err = s.PopulateMessage(ctx, msg)
			if err != nil {
				return nil, err
			}
		}
	}
	return model.NewConversationView(conv, participants, last), nil
}

// PushConversationUpdate re-fetches, populates and pushes the conversation
// individually to every participant's own connection, so each list reorders
// and reflects its own unread count.
func (s *Server) PushConversationUpdate(ctx context.Context, conversationID string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	view, err := s.PopulateConversation(ctx, conv)
	if err != nil {
		return err
	}
	for _, p := range conv.Participants {
		s.PushToUser(p, EvConversationUpdated, view)
	}
	return nil
}
