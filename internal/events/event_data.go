package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SnapshotPublishedData contains data for SnapshotPublished events
type SnapshotPublishedData struct {
	TotalPnL   float64 `json:"total_pnl"`
	MaxDeltaBP float64 `json:"max_delta_bp"`
	Positions  int     `json:"positions"`
}

// EventType returns the event type for SnapshotPublishedData
func (d *SnapshotPublishedData) EventType() EventType {
	return SnapshotPublished
}

// CurveResetData contains data for CurveReset events
type CurveResetData struct {
	Source string `json:"source"` // "api" or "scheduled"
}

// EventType returns the event type for CurveResetData
func (d *CurveResetData) EventType() EventType {
	return CurveReset
}
