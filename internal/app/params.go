package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/ggonzalez94/btcops/internal/config"
	clierr "github.com/ggonzalez94/btcops/internal/errors"
	"github.com/ggonzalez94/btcops/internal/wallet"
)

// scalar keeps the literal text of a YAML or JSON scalar so amounts such as
// 0.10 reach the converter exactly as written.
type scalar string

func (s *scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	if node.Tag == "!!null" {
		return nil
	}
	*s = scalar(node.Value)
	return nil
}

// argsFile is the Ansible-style parameter file. JSON is valid YAML, so both
// formats go through the same decoder.
type argsFile struct {
	SendToAddress *scalar `yaml:"sendtoaddress"`
	Amount        *scalar `yaml:"amount"`
	GetNewAddress *scalar `yaml:"getnewaddress"`
	GetBalance    *scalar `yaml:"getbalance"`
	Testnet       *scalar `yaml:"testnet"`
	ServiceURL    *scalar `yaml:"service_url"`
	ServicePort   *scalar `yaml:"service_port"`
	ConfFile      *scalar `yaml:"btc_conf_file"`
	CheckMode     *scalar `yaml:"_ansible_check_mode"`
}

func loadArgsFile(path string) (argsFile, error) {
	var args argsFile
	buf, err := os.ReadFile(path)
	if err != nil {
		return args, clierr.Wrap(clierr.CodeUsage, "read args file", err)
	}
	if strings.TrimSpace(string(buf)) == "" {
		return args, nil
	}
	if err := yaml.Unmarshal(buf, &args); err != nil {
		return args, clierr.Wrap(clierr.CodeUsage, "parse args file", err)
	}
	return args, nil
}

func (a argsFile) apply(req *wallet.Request) error {
	if a.SendToAddress != nil {
		req.SendToAddress = strings.TrimSpace(string(*a.SendToAddress))
	}
	if a.Amount != nil {
		req.Amount = strings.TrimSpace(string(*a.Amount))
	}
	if a.GetNewAddress != nil {
		v, err := parseBool("getnewaddress", string(*a.GetNewAddress))
		if err != nil {
			return err
		}
		req.GenerateNewAddress = v
	}
	if a.GetBalance != nil {
		q, err := wallet.ParseBalanceQuery(string(*a.GetBalance))
		if err != nil {
			return err
		}
		req.Balance = q
	}
	if a.Testnet != nil {
		v, err := parseBool("testnet", string(*a.Testnet))
		if err != nil {
			return err
		}
		req.Testnet = v
	}
	if a.ServiceURL != nil {
		req.ServiceURL = strings.TrimSpace(string(*a.ServiceURL))
	}
	if a.ServicePort != nil && strings.TrimSpace(string(*a.ServicePort)) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(string(*a.ServicePort)))
		if err != nil {
			return clierr.Wrap(clierr.CodeUsage, "service_port must be an integer", err)
		}
		req.ServicePort = port
	}
	if a.ConfFile != nil {
		req.ConfFile = strings.TrimSpace(string(*a.ConfFile))
	}
	if a.CheckMode != nil {
		v, err := parseBool("_ansible_check_mode", string(*a.CheckMode))
		if err != nil {
			return err
		}
		req.DryRun = v
	}
	return nil
}

func parseBool(key, v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off", "":
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("%s must be a boolean", key), err)
	}
	return b, nil
}

// connOptions are the connection and dry-run flags every wallet command takes.
type connOptions struct {
	testnet     bool
	serviceURL  string
	servicePort int
	confFile    string
	check       bool
}

func (c connOptions) apply(flags *pflag.FlagSet, req *wallet.Request) {
	if flags.Changed("testnet") {
		req.Testnet = c.testnet
	}
	if flags.Changed("service-url") {
		req.ServiceURL = strings.TrimSpace(c.serviceURL)
	}
	if flags.Changed("service-port") {
		req.ServicePort = c.servicePort
	}
	if flags.Changed("btc-conf-file") {
		req.ConfFile = strings.TrimSpace(c.confFile)
	}
	if flags.Changed("check") {
		req.DryRun = c.check
	}
}

// runOptions are the flags of the run command.
type runOptions struct {
	connOptions
	sendTo     string
	amount     string
	newAddress bool
	balance    string
	argsFile   string
}

// buildRequest layers configured node defaults, then the args file, then the
// flags that were set explicitly.
func (o runOptions) buildRequest(flags *pflag.FlagSet, node config.Node) (wallet.Request, error) {
	req := baseRequest(node)
	if strings.TrimSpace(o.argsFile) != "" {
		args, err := loadArgsFile(o.argsFile)
		if err != nil {
			return req, err
		}
		if err := args.apply(&req); err != nil {
			return req, err
		}
	}

	if flags.Changed("sendtoaddress") {
		req.SendToAddress = strings.TrimSpace(o.sendTo)
	}
	if flags.Changed("amount") {
		req.Amount = strings.TrimSpace(o.amount)
	}
	if flags.Changed("getnewaddress") {
		req.GenerateNewAddress = o.newAddress
	}
	if flags.Changed("getbalance") {
		q, err := wallet.ParseBalanceQuery(o.balance)
		if err != nil {
			return req, err
		}
		req.Balance = q
	}
	o.connOptions.apply(flags, &req)
	return req, nil
}

func baseRequest(node config.Node) wallet.Request {
	return wallet.Request{
		Testnet:     node.Testnet,
		ServiceURL:  node.ServiceURL,
		ServicePort: node.ServicePort,
		ConfFile:    node.ConfFile,
	}
}

// checkAlias lets --dry-run stand in for --check.
func checkAlias(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "dry-run" {
		name = "check"
	}
	return pflag.NormalizedName(name)
}
