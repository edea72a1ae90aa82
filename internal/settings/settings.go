package settings

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"social-relay-go/internal/store"
)

// ClientConfig is the per-tenant configuration visible to the pipeline
type ClientConfig struct {
	ClientID         string
	AssistantEnabled bool
	FallbackReply    string
}

// Snapshot is an immutable view of all client configuration. Readers always
// see a fully formed snapshot; a reload swaps the whole value at once.
type Snapshot struct {
	clients map[string]ClientConfig
}

// Client returns the configuration for a client, falling back to permissive
// defaults for clients with no persisted settings row.
func (s *Snapshot) Client(clientID string) ClientConfig {
	if cfg, ok := s.clients[clientID]; ok {
		return cfg
	}
	return ClientConfig{ClientID: clientID, AssistantEnabled: true}
}

// ClientIDs lists the clients with persisted settings
func (s *Snapshot) ClientIDs() []string {
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	return ids
}

// Registry holds the current settings snapshot and swaps it atomically on
// reload, without a process restart.
type Registry struct {
	current atomic.Value
}

// NewRegistry creates a registry holding an empty snapshot
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&Snapshot{clients: map[string]ClientConfig{}})
	return r
}

// Current returns the active snapshot
func (r *Registry) Current() *Snapshot {
	return r.current.Load().(*Snapshot)
}

// Reload re-reads persisted client settings and swaps in a new snapshot
func (r *Registry) Reload(st *store.Store) error {
	rows, err := st.AllClientSettings()
	if err != nil {
		return err
	}

	clients := make(map[string]ClientConfig, len(rows))
	for _, row := range rows {
		clients[row.ClientID] = ClientConfig{
			ClientID:         row.ClientID,
			AssistantEnabled: row.AssistantEnabled,
			FallbackReply:    row.FallbackReply,
		}
	}

	r.current.Store(&Snapshot{clients: clients})
	logrus.Infof("Reloaded settings for %d clients", len(clients))
	return nil
}
