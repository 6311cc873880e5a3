// Package oauth puts an OAuth 2.1 authorization server with PKCE in front
// of an MCP server, delegating user authentication to Google.
//
// Only one configured email address receives tokens. Clients register
// dynamically, send the user through /oauth/authorize, and redeem the
// returned code at /oauth/token with their PKCE verifier. Protected routes
// are wrapped with Handler.RequireAuth.
//
// Basic usage:
//
//	srv, err := oauth.New(&oauth.Config{
//	    BaseURL:      "https://mcp.example.com",
//	    Google:       oauth.GoogleConfig{ClientID: id, ClientSecret: secret},
//	    JWTSecret:    jwtSecret,
//	    AllowedEmail: "alice@example.com",
//	}, memory.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//
//	h := oauth.NewHandler(srv, nil)
//	router := chi.NewRouter()
//	router.Mount("/", h.Routes())
//	router.With(h.RequireAuth).Post("/mcp", mcpHandler)
//
// Storage is pluggable through storage.Store; see the memory, valkey, redis
// and sqlite packages.
package oauth
