package config

// parameters for the notification mail transport; an empty host disables
// delivery and notifications are only logged
type mailConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Login    string `json:"login" yaml:"login"`
	Password string `json:"password" yaml:"password"`
	// address used in the From header
	Sender string `json:"sender" yaml:"sender"`
}
