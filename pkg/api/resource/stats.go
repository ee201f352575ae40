package resource

type StatsResource struct {
	Total         int64 `json:"total"`
	Pending       int64 `json:"pending"`
	Processing    int64 `json:"processing"`
	Processed     int64 `json:"processed"`
	Failed        int64 `json:"failed"`
	BrokerEnabled bool  `json:"brokerEnabled"`
}
