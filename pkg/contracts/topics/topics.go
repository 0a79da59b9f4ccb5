package topics

const (
	// Stream de eventos publicados pelo mirror-service
	LiveDataUpdates = "live_data_updates"

	// Redis
	LiveDataBroadcast = "live_data_broadcast"
	LiveDataStateKey  = "live:state"
)
