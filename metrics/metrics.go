// Package metrics exposes the chat core's operational counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_rooms_created_total",
		Help: "Chat rooms created.",
	})

	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Chat messages appended, by sender type.",
	}, []string{"sender_type"})

	ClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_claim_conflicts_total",
		Help: "Claim attempts that lost the conditional update race.",
	})

	WaitingRooms = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chat_waiting_rooms",
		Help: "Rooms currently waiting for an attendant, per tenant.",
	}, []string{"tenant"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_published_total",
		Help: "Fan-out events published, by type.",
	}, []string{"type"})
)
