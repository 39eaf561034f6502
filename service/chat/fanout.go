package chat

import (
	"hash/fnv"

	"roomify/tools/safe"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout pushes one payload to many send queues off the handler goroutine.
// Jobs with the same key always land on the same worker, so broadcasts into
// one room keep their submit order.
type Fanout struct {
	queues []chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 1
	}
	f := &Fanout{queues: make([]chan fanoutJob, workers)}
	for i := range f.queues {
		q := make(chan fanoutJob, queue)
		f.queues[i] = q
		safe.SafeGo(func() {
			for job := range q {
				for _, c := range job.conns {
					c.Enqueue(job.payload)
				}
			}
		})
	}
	return f
}

func (f *Fanout) Broadcast(key string, conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	f.queues[h.Sum32()%uint32(len(f.queues))] <- fanoutJob{conns: conns, payload: payload}
}
