package config

import "github.com/wishlabs/deployer/database/mysql"

// DeployerConfig represent root of the deployment engine config.
type DeployerConfig struct {
	MySQL            mysql.Config `json:"mysql"`
	Redis            RedisConfig  `json:"redis"`
	Networks         []Network    `json:"networks"`
	CompilerEndpoint string       `json:"compiler_endpoint"`
	NotifyQueue      string       `json:"notify_queue"`
	Workers          int          `json:"workers"`
	CheckSeconds     uint64       `json:"check_seconds"`
}

// RedisConfig represent the redis connection carrying the event queues
// and the notification stream.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Network represent one blockchain network the engine deploys to.
type Network struct {
	Name                string `json:"name"`
	RPCEndpoint         string `json:"rpc_endpoint"`
	Queue               string `json:"queue"`
	ChainID             int64  `json:"chain_id"`
	SigningKey          string `json:"signing_key"`
	GasPrice            uint64 `json:"gas_price"`
	DeployGasLimit      uint64 `json:"deploy_gas_limit"`
	CallGasLimit        uint64 `json:"call_gas_limit"`
	CollateralBilling   bool   `json:"collateral_billing"`
	AliveTimeoutSeconds int64  `json:"alive_timeout_seconds"`
}
