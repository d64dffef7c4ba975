package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/cavendo/go-dispatch/core"
)

var (
	_ gocmd.Querier[GetRouteMessage, core.Route]                          = (*GetRouteQuery)(nil)
	_ gocmd.Querier[ListRoutesMessage, []core.Route]                      = (*ListRoutesQuery)(nil)
	_ gocmd.Querier[GetDeliveryMessage, core.DeliveryAttempt]             = (*GetDeliveryQuery)(nil)
	_ gocmd.Querier[ListDeliveriesMessage, []core.DeliveryAttempt]        = (*ListDeliveriesQuery)(nil)
	_ gocmd.Querier[ListAgentWebhooksMessage, []core.AgentWebhook]        = (*ListAgentWebhooksQuery)(nil)
	_ gocmd.Querier[EncryptionHealthMessage, core.EncryptionHealthReport] = (*EncryptionHealthQuery)(nil)
)
