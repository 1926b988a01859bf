package config

import "strings"

type Cors struct{}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins reads CORS_ALLOWED_ORIGINS; "*" allows any origin without credentials
func (Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, o := range GetEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}) {
		origins[o] = nullValue{}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization, X-Correlation-Id, HX-Request"
}

// GetExposedHeaders lists response headers browser callers may read
func (Cors) GetExposedHeaders() string {
	return "X-Correlation-Id, HX-Redirect"
}
