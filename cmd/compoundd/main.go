package main

import (
	"flag"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"compoundbank/config"
	"compoundbank/core/state"
	"compoundbank/core/types"
	"compoundbank/crypto"
	"compoundbank/native/compound"
	"compoundbank/native/token"
	"compoundbank/observability/logging"
	"compoundbank/rpc"
	"compoundbank/rpc/modules"
	"compoundbank/storage"
)

type pauseView struct {
	compoundPaused bool
}

func (p pauseView) IsPaused(module string) bool {
	return module == "compound" && p.compoundPaused
}

// logEmitter forwards ledger events to the structured logger.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt *types.Event) {
	if evt == nil {
		return
	}
	attrs := make([]any, 0, len(evt.Attributes)*2)
	for k, v := range evt.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	l.logger.Info(evt.Type, attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("COMPOUNDBANK_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup("compoundd", env).Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.Env != "" {
		env = cfg.Env
	}

	var logger *slog.Logger
	if strings.TrimSpace(cfg.LogFile) != "" {
		logger = logging.SetupWithRotation("compoundd", env, cfg.LogFile)
	} else {
		logger = logging.Setup("compoundd", env)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	meta, err := initializeLedger(manager, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", slog.Any("error", err))
		os.Exit(1)
	}

	tokenAddr := crypto.NewAddress(crypto.BankPrefix, meta.TokenAddress)
	ctokenAddr := crypto.NewAddress(crypto.BankPrefix, meta.CTokenAddress)
	custodyAddr := crypto.NewAddress(crypto.BankPrefix, meta.CustodyAddress)

	ledger := token.NewLedger(manager, tokenAddr, ctokenAddr)

	params := compound.Params{
		InterestRateBps:     meta.InterestRateBps,
		BorrowRateBps:       meta.BorrowRateBps,
		CollateralFactorBps: meta.CollateralFactorBps,
		ExchangeRate:        new(big.Int).Set(meta.ExchangeRate),
	}
	engine := compound.NewEngine(custodyAddr, tokenAddr, ctokenAddr, params, meta.InitTime)
	engine.SetState(manager)
	engine.SetTransferrer(ledger)
	engine.SetPauses(pauseView{compoundPaused: cfg.PauseCompound})
	engine.SetEmitter(logEmitter{logger: logger})

	server := rpc.NewServer(modules.NewCompoundModule(engine))
	logger.Info("Starting JSON-RPC server", slog.String("addr", cfg.RPCAddress))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// initializeLedger constructs the ledger exactly once: the first boot
// validates the configured parameters, persists them together with the init
// timestamp and seeds genesis allocations. Later boots load the persisted
// record; the stored parameters stay authoritative for the ledger's entire
// lifetime.
func initializeLedger(manager *state.Manager, cfg *config.Config, logger *slog.Logger) (*state.LedgerMeta, error) {
	meta, ok, err := manager.GetLedgerMeta()
	if err != nil {
		return nil, err
	}
	if ok {
		if configDiffers(meta, cfg) {
			logger.Warn("Configured ledger parameters differ from the persisted ledger; the persisted parameters remain in effect")
		}
		return meta, nil
	}

	tokenAddr, err := cfg.Compound.Token()
	if err != nil {
		return nil, err
	}
	ctokenAddr, err := cfg.Compound.CToken()
	if err != nil {
		return nil, err
	}
	custodyAddr, err := cfg.Custody()
	if err != nil {
		return nil, err
	}

	meta = &state.LedgerMeta{
		TokenAddress:        tokenAddr.Bytes(),
		CTokenAddress:       ctokenAddr.Bytes(),
		CustodyAddress:      custodyAddr.Bytes(),
		InterestRateBps:     cfg.Compound.InterestRateBps,
		BorrowRateBps:       cfg.Compound.BorrowRateBps,
		CollateralFactorBps: cfg.Compound.CollateralFactorBps,
		ExchangeRate:        big.NewInt(cfg.Compound.ExchangeRate),
		InitTime:            uint64(time.Now().Unix()),
	}
	if err := manager.PutLedgerMeta(meta); err != nil {
		return nil, err
	}

	ledger := token.NewLedger(manager, tokenAddr, ctokenAddr)
	for i := range cfg.Genesis {
		alloc, err := cfg.Genesis[i].Decode()
		if err != nil {
			return nil, err
		}
		if alloc.Token.Sign() > 0 {
			if err := ledger.Mint(tokenAddr, alloc.Address, alloc.Token); err != nil {
				return nil, err
			}
		}
		if alloc.CToken.Sign() > 0 {
			if err := ledger.Mint(ctokenAddr, alloc.Address, alloc.CToken); err != nil {
				return nil, err
			}
		}
	}

	logger.Info("Ledger initialized",
		slog.String("token", tokenAddr.String()),
		slog.String("ctoken", ctokenAddr.String()),
		slog.Uint64("initTime", meta.InitTime),
	)
	return meta, nil
}

func configDiffers(meta *state.LedgerMeta, cfg *config.Config) bool {
	if meta.InterestRateBps != cfg.Compound.InterestRateBps ||
		meta.BorrowRateBps != cfg.Compound.BorrowRateBps ||
		meta.CollateralFactorBps != cfg.Compound.CollateralFactorBps {
		return true
	}
	return meta.ExchangeRate.Cmp(big.NewInt(cfg.Compound.ExchangeRate)) != 0
}
