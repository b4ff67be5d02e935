package config

import (
	"fmt"
	"os"
	"strings"
)

// Default configuration values (production)
const (
	DefaultDomain = "community.chapelware.org"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
	DefaultTURN   = "" // Optional, empty by default
)

// Config holds application configuration
type Config struct {
	// Domain is the platform server domain
	Domain string

	// APIBaseURL and WebSocketURL are constructed from domain
	APIBaseURL   string
	WebSocketURL string

	// AuthToken authenticates REST and socket requests
	AuthToken string

	// Username is the local identity, as known to the platform
	Username string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	Token      string
	Username   string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("GATHER_DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	token := opts.Token
	if token == "" {
		token = os.Getenv("GATHER_TOKEN")
	}

	username := opts.Username
	if username == "" {
		username = os.Getenv("GATHER_USERNAME")
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	if stunServer == "" {
		stunServer = DefaultSTUN
	}

	turnServer := opts.TURNServer
	if turnServer == "" {
		turnServer = os.Getenv("TURN_SERVER")
	}
	if turnServer == "" {
		turnServer = DefaultTURN
	}

	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}

	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}

	return &Config{
		Domain:       domain,
		APIBaseURL:   fmt.Sprintf("https://%s/api", domain),
		WebSocketURL: fmt.Sprintf("wss://%s/ws/video-meeting", domain),
		AuthToken:    token,
		Username:     username,
		STUNServer:   stunServer,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		ForceRelay:   opts.ForceRelay,
	}, nil
}

// RoomSocketURL returns the per-room signaling socket URL
func (c *Config) RoomSocketURL(roomID string) string {
	return fmt.Sprintf("%s/%s/", c.WebSocketURL, roomID)
}

// RoomLink returns the webapp URL for a room ID
func (c *Config) RoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/video-meetings/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
