package plugin

import (
	"context"
	"log"
	"sync"
	"time"
)

// dispatchQueueSize bounds the requests waiting for slow plugins.
const dispatchQueueSize = 64

// drainTimeout bounds how long Stop keeps delivering queued requests.
const drainTimeout = 5 * time.Second

// Dispatcher delivers requests to a fixed set of plugins on a single worker
// goroutine, so plugins see commits in the order they were made.
type Dispatcher struct {
	plugins  []*Plugin
	executor *Executor
	queue    chan *Request
	stopCh   chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewDispatcher creates a Dispatcher for plugins and starts its worker.
func NewDispatcher(plugins []*Plugin, executor *Executor) *Dispatcher {
	d := &Dispatcher{
		plugins:  plugins,
		executor: executor,
		queue:    make(chan *Request, dispatchQueueSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Plugins returns the plugins receiving requests.
func (d *Dispatcher) Plugins() []*Plugin {
	return d.plugins
}

// Send queues req without blocking. It reports false if the queue is full
// or the dispatcher is stopped.
func (d *Dispatcher) Send(req *Request) bool {
	if len(d.plugins) == 0 {
		return true
	}
	select {
	case <-d.stopCh:
		return false
	default:
	}
	select {
	case d.queue <- req:
		return true
	default:
		log.Printf("Plugin queue full, dropping %s request", req.Action)
		return false
	}
}

// Stop waits for the worker to deliver the requests already queued, for at
// most five seconds, and stops it. Requests left after the deadline are dropped.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.stopCh)
	})
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		select {
		case <-d.stopCh:
			d.drain()
			return
		case req := <-d.queue:
			d.deliver(context.Background(), req)
		}
	}
}

// drain delivers what is left in the queue after Stop.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case req := <-d.queue:
			if ctx.Err() != nil {
				log.Printf("Plugin shutdown deadline passed, dropping %d requests", len(d.queue)+1)
				return
			}
			d.deliver(ctx, req)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, req *Request) {
	for _, p := range d.plugins {
		if !p.Manifest.Supports(req.Action) {
			continue
		}
		r := *req
		r.Config = p.Config
		resp, err := d.executor.Execute(ctx, p, &r)
		if err != nil {
			log.Printf("Plugin %s: %v", p.Manifest.Name, err)
			continue
		}
		if !resp.Success {
			log.Printf("Plugin %s rejected %s: %s", p.Manifest.Name, req.Action, resp.Error)
		}
	}
}
