package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

// SubscriptionHandler starts server side subscriptions whose bars reach
// clients through Centrifugo channels. Clients of one channel share a single
// live subscription, it is stopped when the last of them leaves.
type SubscriptionHandler struct {
	// ctx outlives requests, subscriptions are bound to it.
	ctx  context.Context
	feed Datafeed

	mu       sync.Mutex
	clients  map[string]string // client id -> channel
	channels map[string]*channelSubscription
}

type channelSubscription struct {
	feedID  string
	clients int
}

func NewSubscriptionHandler(ctx context.Context, feed Datafeed) *SubscriptionHandler {
	return &SubscriptionHandler{
		ctx:      ctx,
		feed:     feed,
		clients:  map[string]string{},
		channels: map[string]*channelSubscription{},
	}
}

type subscribeRequest struct {
	Symbol     string            `json:"symbol"`
	Resolution domain.Resolution `json:"resolution"`
	ID         string            `json:"id,omitempty"`
}

type subscribeResponse struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
}

func (h *SubscriptionHandler) Subscribe(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body subscribeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(ctx, res, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if body.Resolution.IsNotExist() {
		writeError(ctx, res, http.StatusBadRequest, fmt.Sprintf("unsupported resolution %q", body.Resolution))
		return
	}
	info, err := h.feed.Resolve(body.Symbol)
	if err != nil {
		writeError(ctx, res, http.StatusNotFound, err.Error())
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}
	channel := domain.ChartChannelName(info.Name, body.Resolution)

	if err := h.join(body.ID, channel, info, body.Resolution); err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("[SubscriptionHandler.Subscribe] can't subscribe")
		writeError(ctx, res, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(ctx, res, http.StatusCreated, subscribeResponse{ID: body.ID, Channel: channel})
}

func (h *SubscriptionHandler) Unsubscribe(res http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if !h.leave(id) {
		writeError(req.Context(), res, http.StatusNotFound, fmt.Sprintf("subscription %q not found", id))
		return
	}
	res.WriteHeader(http.StatusNoContent)
}

// join attaches client id to channel, starting the live subscription for the
// first client. A client moving to another channel leaves the previous one.
func (h *SubscriptionHandler) join(id, channel string, info domain.SymbolInfo, resolution domain.Resolution) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[id]; ok {
		if current == channel {
			return nil
		}
		h.detach(id)
	}

	sub, ok := h.channels[channel]
	if !ok {
		feedID, err := h.feed.SubscribeBars(h.ctx, info, resolution, nil, uuid.NewString(), nil)
		if err != nil {
			return err
		}
		sub = &channelSubscription{feedID: feedID}
		h.channels[channel] = sub
	}
	sub.clients++
	h.clients[id] = channel

	return nil
}

func (h *SubscriptionHandler) leave(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[id]; !ok {
		return false
	}
	h.detach(id)

	return true
}

// detach must be called with h.mu held.
func (h *SubscriptionHandler) detach(id string) {
	channel := h.clients[id]
	delete(h.clients, id)

	sub, ok := h.channels[channel]
	if !ok {
		return
	}
	sub.clients--
	if sub.clients > 0 {
		return
	}
	delete(h.channels, channel)
	h.feed.UnsubscribeBars(sub.feedID)
}
