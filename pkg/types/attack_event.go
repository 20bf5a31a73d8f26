package types

import "time"

// AttackEvent is one finished connection. It is immutable once built by the connection handler.
type AttackEvent struct {
	ID            int64      `json:"id"             csv:"id"`
	Timestamp     time.Time  `json:"timestamp"      csv:"timestamp"`
	Type          AttackType `json:"type"           csv:"type"`
	SourceIP      string     `json:"source_ip"      csv:"source_ip"`
	SourcePort    int        `json:"source_port"    csv:"source_port"`
	TargetPort    int        `json:"target_port"    csv:"target_port"`
	SimulatedPort int        `json:"simulated_port" csv:"simulated_port"`
	Service       string     `json:"service"        csv:"service"`
	Payload       string     `json:"payload"        csv:"payload"`
	PayloadSize   int        `json:"payload_size"   csv:"payload_size"`
	Severity      Severity   `json:"severity"       csv:"severity"`
	UserAgent     string     `json:"user_agent"     csv:"user_agent"`
	ConnectionID  uint64     `json:"connection_id"  csv:"connection_id"`
}

type IPRecord struct {
	IPAddress    string      `json:"ip_address"`
	FirstSeen    time.Time   `json:"first_seen"`
	LastSeen     time.Time   `json:"last_seen"`
	TotalAttacks int64       `json:"total_attacks"`
	ThreatLevel  ThreatLevel `json:"threat_level"`
}

type Alert struct {
	ID           int64      `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	AlertType    AttackType `json:"alert_type"`
	SourceIP     string     `json:"source_ip"`
	Message      string     `json:"message"`
	Severity     Severity   `json:"severity"`
	Acknowledged bool       `json:"is_acknowledged"`
	AttackID     int64      `json:"attack_id"`
}

// IPEnrichment holds optional geolocation data for a source address.
type IPEnrichment struct {
	IPAddress string    `json:"ip_address"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
	ASNumber  uint      `json:"as_number,omitempty"`
	ASOrg     string    `json:"as_org,omitempty"`
	IPRange   string    `json:"ip_range,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PortCount struct {
	Port  int   `json:"port"`
	Count int64 `json:"count"`
}

type IPCount struct {
	IP    string `json:"ip"`
	Count int64  `json:"count"`
}

type Statistics struct {
	TotalAttacks  int64            `json:"total_attacks"`
	UniqueIPs     int64            `json:"unique_ips"`
	ByType        map[string]int64 `json:"by_type"`
	ByPort        []PortCount      `json:"by_port"`
	BySeverity    map[string]int64 `json:"by_severity"`
	TopAttackers  []IPCount        `json:"top_attackers"`
	Hourly        map[string]int64 `json:"hourly"`
	PendingAlerts int64            `json:"pending_alerts"`
}

// NewStatistics returns zeroed statistics with non-nil collections.
func NewStatistics() *Statistics {
	return &Statistics{
		ByType:       map[string]int64{},
		ByPort:       []PortCount{},
		BySeverity:   map[string]int64{},
		TopAttackers: []IPCount{},
		Hourly:       map[string]int64{},
	}
}
