package service

// Paths are the API endpoints the client calls. They are appended to the API
// base URL.
type Paths struct {
	Login    string
	Register string
	Refresh  string
	Me       string
	Logout   string
	Saccos   string
}

// DefaultPaths returns the standard endpoint layout.
func DefaultPaths() Paths {
	return Paths{
		Login:    "/auth/login",
		Register: "/auth/register",
		Refresh:  "/auth/refresh",
		Me:       "/auth/me",
		Logout:   "/auth/logout",
		Saccos:   "/saccos/",
	}
}

// withDefaults fills empty paths from DefaultPaths.
func (p Paths) withDefaults() Paths {
	d := DefaultPaths()
	if p.Login == "" {
		p.Login = d.Login
	}
	if p.Register == "" {
		p.Register = d.Register
	}
	if p.Refresh == "" {
		p.Refresh = d.Refresh
	}
	if p.Me == "" {
		p.Me = d.Me
	}
	if p.Logout == "" {
		p.Logout = d.Logout
	}
	if p.Saccos == "" {
		p.Saccos = d.Saccos
	}
	return p
}
