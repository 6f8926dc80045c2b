package query

type WebhookConfigQuery struct {
	Query

	OwnerID *string
	Active  *bool
}

func (q *WebhookConfigQuery) WhereMap() map[string]interface{} {
	maps := make(map[string]interface{})
	if q.OwnerID != nil {
		maps["owner_id"] = *q.OwnerID
	}
	if q.Active != nil {
		maps["active"] = *q.Active
	}
	return maps
}

type IncomingWebhookConfigQuery struct {
	Query

	OwnerID *string
	Active  *bool
}

func (q *IncomingWebhookConfigQuery) WhereMap() map[string]interface{} {
	maps := make(map[string]interface{})
	if q.OwnerID != nil {
		maps["owner_id"] = *q.OwnerID
	}
	if q.Active != nil {
		maps["active"] = *q.Active
	}
	return maps
}

type DeliveryQuery struct {
	Query

	OwnerID  *string
	ConfigID *string
	Status   *string
}

func (q *DeliveryQuery) WhereMap() map[string]interface{} {
	maps := make(map[string]interface{})
	if q.OwnerID != nil {
		maps["owner_id"] = *q.OwnerID
	}
	if q.ConfigID != nil {
		maps["config_id"] = *q.ConfigID
	}
	if q.Status != nil {
		maps["status"] = *q.Status
	}
	return maps
}

type DeliveryLogQuery struct {
	Query

	OwnerID    *string
	ConfigID   *string
	DeliveryID *string
	Direction  *string
}

func (q *DeliveryLogQuery) WhereMap() map[string]interface{} {
	maps := make(map[string]interface{})
	if q.OwnerID != nil {
		maps["owner_id"] = *q.OwnerID
	}
	if q.ConfigID != nil {
		maps["config_id"] = *q.ConfigID
	}
	if q.DeliveryID != nil {
		maps["delivery_id"] = *q.DeliveryID
	}
	if q.Direction != nil {
		maps["direction"] = *q.Direction
	}
	return maps
}
