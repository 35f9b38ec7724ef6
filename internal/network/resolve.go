package network

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"gopkg.in/ini.v1"
)

const defaultRPCHost = "127.0.0.1"

// Overrides are the optional connection settings supplied by the caller.
type Overrides struct {
	ServiceURL  string
	ServicePort int
	ConfFile    string
}

// Endpoint is a fully resolved node address with credentials. Exactly one of
// Pass or CookiePath is set.
type Endpoint struct {
	Host       string
	User       string
	Pass       string
	CookiePath string
}

// Redacted describes the endpoint without secrets, for logs and failures.
func (e Endpoint) Redacted() string {
	auth := "password"
	if e.CookiePath != "" {
		auth = "cookie " + e.CookiePath
	}
	return fmt.Sprintf("%s (auth: %s)", e.Host, auth)
}

// RedactURL strips credentials from a service URL.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(u.User.Username())
	return u.String()
}

// DefaultDataDir is Bitcoin Core's data directory for the current user.
func DefaultDataDir() string {
	return btcutil.AppDataDir("bitcoin", false)
}

type nodeConf struct {
	host    string
	port    int
	user    string
	pass    string
	dataDir string
	path    string
}

// Resolve works out host, port and credentials for net. An explicit service
// URL wins; otherwise bitcoin.conf is read, and when it carries no rpcpassword
// the node's auth cookie is used.
func Resolve(n Network, o Overrides) (Endpoint, error) {
	if o.ServicePort < 0 || o.ServicePort > 65535 {
		return Endpoint{}, fmt.Errorf("service port %d out of range", o.ServicePort)
	}

	if strings.TrimSpace(o.ServiceURL) != "" {
		return resolveURL(n, o)
	}

	conf, err := readConf(n, o.ConfFile)
	if err != nil {
		return Endpoint{}, err
	}
	host, port, err := splitConnect(conf.host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("bitcoin conf %s: %w", conf.path, err)
	}
	if host == "" {
		host = defaultRPCHost
	}
	if port == 0 {
		port = n.RPCPort
	}
	if conf.port > 0 {
		port = conf.port
	}
	if o.ServicePort > 0 {
		port = o.ServicePort
	}
	ep := Endpoint{Host: net.JoinHostPort(host, strconv.Itoa(port))}
	return withCredentials(n, ep, conf)
}

// splitConnect separates an rpcconnect value into host and optional port.
// rpcport still wins over a port given here.
func splitConnect(v string) (string, int, error) {
	if v == "" {
		return "", 0, nil
	}
	host, rawPort, err := net.SplitHostPort(v)
	if err != nil {
		// No port: a bare name, IPv4 or bracketed IPv6 address.
		return strings.TrimSuffix(strings.TrimPrefix(v, "["), "]"), 0, nil
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in rpcconnect %q", v)
	}
	return host, port, nil
}

func resolveURL(n Network, o Overrides) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(o.ServiceURL))
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse service url: %w", err)
	}
	if u.Scheme != "http" {
		return Endpoint{}, fmt.Errorf("service url %q: unsupported scheme %q, expected http", RedactURL(o.ServiceURL), u.Scheme)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("service url %q has no host", RedactURL(o.ServiceURL))
	}

	port := u.Port()
	if port == "" {
		port = strconv.Itoa(n.RPCPort)
		if o.ServicePort > 0 {
			port = strconv.Itoa(o.ServicePort)
		}
	}
	ep := Endpoint{Host: net.JoinHostPort(u.Hostname(), port)}

	if u.User != nil {
		if pass, ok := u.User.Password(); ok {
			ep.User = u.User.Username()
			ep.Pass = pass
			return ep, nil
		}
	}

	conf, err := readConf(n, o.ConfFile)
	if err != nil {
		return Endpoint{}, err
	}
	if u.User != nil && conf.pass == "" {
		return Endpoint{}, fmt.Errorf("service url names user %q but no password was found", u.User.Username())
	}
	return withCredentials(n, ep, conf)
}

func withCredentials(n Network, ep Endpoint, conf nodeConf) (Endpoint, error) {
	if conf.pass != "" {
		ep.User = conf.user
		ep.Pass = conf.pass
		return ep, nil
	}

	dataDir := conf.dataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	cookie := filepath.Join(dataDir, n.DataSubdir, ".cookie")
	if _, err := os.Stat(cookie); err != nil {
		where := "no bitcoin.conf"
		if conf.path != "" {
			where = conf.path
		}
		return Endpoint{}, fmt.Errorf("no rpcpassword in %s and no auth cookie at %s: %w", where, cookie, err)
	}
	ep.CookiePath = cookie
	return ep, nil
}

// readConf loads bitcoin.conf. A missing file is only an error when the caller
// named it explicitly.
func readConf(n Network, explicit string) (nodeConf, error) {
	path := strings.TrimSpace(explicit)
	if path == "" {
		path = filepath.Join(DefaultDataDir(), "bitcoin.conf")
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nodeConf{}, nil
		}
	}

	// bitcoind only treats '#' as a comment; ';' and quotes are literal.
	cfg, err := ini.LoadSources(ini.LoadOptions{
		SkipUnrecognizableLines: true,
		AllowBooleanKeys:        true,
		IgnoreInlineComment:     true,
		IgnoreContinuation:      true,
		PreserveSurroundedQuote: true,
	}, path)
	if err != nil {
		return nodeConf{}, fmt.Errorf("read bitcoin conf %s: %w", path, err)
	}

	conf := nodeConf{path: path}
	for _, section := range []*ini.Section{cfg.Section(ini.DefaultSection), cfg.Section(n.ConfSection)} {
		if v := confValue(section, "rpcconnect"); v != "" {
			conf.host = v
		}
		if v := confValue(section, "rpcport"); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil || port <= 0 || port > 65535 {
				return nodeConf{}, fmt.Errorf("bitcoin conf %s: invalid rpcport %q", path, v)
			}
			conf.port = port
		}
		if v := confValue(section, "rpcuser"); v != "" {
			conf.user = v
		}
		if v := confValue(section, "rpcpassword"); v != "" {
			conf.pass = v
		}
		if v := confValue(section, "datadir"); v != "" {
			conf.dataDir = v
		}
	}
	return conf, nil
}

// confValue returns key's value with any trailing '#' comment removed.
func confValue(section *ini.Section, key string) string {
	if !section.HasKey(key) {
		return ""
	}
	v, _, _ := strings.Cut(section.Key(key).String(), "#")
	return strings.TrimSpace(v)
}
