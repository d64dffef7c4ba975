package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateRouteMessage]        = (*CreateRouteCommand)(nil)
	_ gocmd.Commander[UpdateRouteMessage]        = (*UpdateRouteCommand)(nil)
	_ gocmd.Commander[DeleteRouteMessage]        = (*DeleteRouteCommand)(nil)
	_ gocmd.Commander[TestRouteMessage]          = (*TestRouteCommand)(nil)
	_ gocmd.Commander[DispatchEventMessage]      = (*DispatchEventCommand)(nil)
	_ gocmd.Commander[DispatchAgentEventMessage] = (*DispatchAgentEventCommand)(nil)
	_ gocmd.Commander[SweepDueRetriesMessage]    = (*SweepDueRetriesCommand)(nil)
	_ gocmd.Commander[CreateAgentWebhookMessage] = (*CreateAgentWebhookCommand)(nil)
	_ gocmd.Commander[UpdateAgentWebhookMessage] = (*UpdateAgentWebhookCommand)(nil)
	_ gocmd.Commander[DeleteAgentWebhookMessage] = (*DeleteAgentWebhookCommand)(nil)
)
