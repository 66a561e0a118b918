package godiag

import (
	"context"
	"log"
	"sync"
)

// handler fans incoming frames out to subscribers
type handler struct {
	adapter Adapter

	submap     map[uint32]map[*Subscriber]struct{}
	globalSubs []*Subscriber

	mu sync.RWMutex
}

func newHandler(adapter Adapter) *handler {
	return &handler{
		adapter:    adapter,
		submap:     make(map[uint32]map[*Subscriber]struct{}),
		globalSubs: make([]*Subscriber, 0, 8),
	}
}

func (h *handler) register(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(sub.identifiers) == 0 {
		h.globalSubs = append(h.globalSubs, sub)
		return
	}
	for id := range sub.identifiers {
		if _, ok := h.submap[id]; !ok {
			h.submap[id] = make(map[*Subscriber]struct{})
		}
		h.submap[id][sub] = struct{}{}
	}
}

func (h *handler) unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(sub.identifiers) == 0 {
		for i, s := range h.globalSubs {
			if s == sub {
				h.globalSubs = append(h.globalSubs[:i], h.globalSubs[i+1:]...)
				break
			}
		}
		close(sub.responseChan)
		return
	}
	for id := range sub.identifiers {
		if subs, ok := h.submap[id]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.submap, id)
			}
		}
	}
	close(sub.responseChan)
}

func (h *handler) run(ctx context.Context) {
	recvChan := h.adapter.Recv()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-recvChan:
			if !ok {
				log.Println("incoming channel closed")
				return
			}
			h.deliver(frame)
		}
	}
}

// deliver sends while holding the read lock, unregister needs the write lock
// to close a subscriber channel so a send can never hit a closed channel.
func (h *handler) deliver(frame *CANFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.globalSubs {
		select {
		case sub.responseChan <- frame:
		default:
			log.Printf("failed to deliver 0x%03X", frame.Identifier)
		}
	}
	for sub := range h.submap[frame.Identifier] {
		select {
		case sub.responseChan <- frame:
		default:
			log.Printf("failed to deliver 0x%03X", frame.Identifier)
		}
	}
}
