package cascade

import "net/url"

// Proxy is one entry in the ordered cascade. An empty Prefix is a direct call.
type Proxy struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// Encode query-escapes the target before appending it to Prefix.
	Encode bool `mapstructure:"encode" yaml:"encode"`
}

// Direct reports whether the entry calls the target without a proxy.
func (p Proxy) Direct() bool {
	return p.Prefix == ""
}

// Compose builds the URL actually requested for target.
func (p Proxy) Compose(target string) string {
	if p.Direct() {
		return target
	}
	if p.Encode {
		return p.Prefix + url.QueryEscape(target)
	}
	return p.Prefix + target
}

// DefaultProxies is the public CORS proxy set, ending with a direct call.
func DefaultProxies() []Proxy {
	return []Proxy{
		{Name: "allorigins", Prefix: "https://api.allorigins.win/raw?url=", Encode: true},
		{Name: "corsproxy", Prefix: "https://corsproxy.io/?", Encode: true},
		{Name: "thingproxy", Prefix: "https://thingproxy.freeboard.io/fetch/"},
		{Name: "codetabs", Prefix: "https://api.codetabs.com/v1/proxy?quest=", Encode: true},
		{Name: "cors-eu", Prefix: "https://cors.eu.org/"},
		{Name: "direct"},
	}
}
