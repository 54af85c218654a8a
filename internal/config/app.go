package config

type AppConfig struct {
	Server ServerConfig
	Ledger LedgerConfig
	Auth   AuthConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	ledgerCfg, err := LoadLedger()
	if err != nil {
		return AppConfig{}, err
	}
	authCfg, err := LoadAuth()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Ledger: ledgerCfg,
		Auth:   authCfg,
		Log:    logCfg,
	}, nil
}
