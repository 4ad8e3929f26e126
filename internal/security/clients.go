package security

// In-memory client registry (replace with DB/config later)
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"engine.read","engine.write"}
	Enabled bool
}

var Clients = map[string]Client{
	"bazarino-frontend": {ID: "bazarino-frontend", Secret: "frontend-secret", Perms: []string{"engine.read", "engine.write"}, Enabled: true},
	"bazarino-admin":    {ID: "bazarino-admin", Secret: "admin-secret", Perms: []string{"engine.read", "engine.write", "catalog.write"}, Enabled: true},
	"svc-analytics":     {ID: "svc-analytics", Secret: "ana-secret", Perms: []string{"engine.read"}, Enabled: true},
}
