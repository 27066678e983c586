package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gxcnet/gxcpeerd/infrastructure/config"
	"github.com/gxcnet/gxcpeerd/infrastructure/db/database"
	"github.com/gxcnet/gxcpeerd/infrastructure/db/database/ldb"
	"github.com/gxcnet/gxcpeerd/infrastructure/logger"
	"github.com/gxcnet/gxcpeerd/infrastructure/os/signal"
	"github.com/gxcnet/gxcpeerd/infrastructure/os/winservice"
	"github.com/gxcnet/gxcpeerd/util/panics"
	"github.com/gxcnet/gxcpeerd/version"
)

const (
	leveldbCacheSizeMiB = 64
	blocksDirectoryName = "blocks"
)

var serviceDescription = &winservice.ServiceDescription{
	Name:        "gxcpeerdsvc",
	DisplayName: "gxcpeerd Service",
	Description: "Keeps a validated copy of the GXC chain and serves it to peers.",
}

type gxcpeerdApp struct {
	cfg *config.Config
}

// StartApp starts the gxcpeerd app, and blocks until it finishes running
func StartApp() error {
	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Command == config.InitConfigSubCmd {
		fmt.Printf("Wrote configuration file %s\n", cfg.ConfigFile)
		return nil
	}
	defer logger.BackendLog.Close()
	defer panics.HandlePanic(log, "MAIN", nil)

	app := &gxcpeerdApp{cfg: cfg}

	// Call serviceMain on Windows to handle running as a service. When
	// the return isService flag is true, exit now since we ran as a
	// service. Otherwise, just fall through to normal operation.
	if runtime.GOOS == "windows" {
		isService, err := winservice.WinServiceMain(app.main, serviceDescription, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}
		if isService {
			return nil
		}
	}

	return app.main(nil)
}

func (app *gxcpeerdApp) main(startedChan chan<- struct{}) error {
	// Get a channel that will be closed when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// the Windows service control manager.
	interrupt := signal.InterruptListener()
	defer log.Info("Shutdown complete")

	// Show version at startup.
	log.Infof("Version %s", version.Version())
	log.Infof("Network %s, node id %s", app.cfg.NetParams().Name, app.cfg.NodeID)

	// Return now if an interrupt signal was triggered.
	if signal.InterruptRequested(interrupt) {
		return nil
	}

	databaseContext, err := openDB(app.cfg)
	if err != nil {
		log.Errorf("Loading database failed: %+v", err)
		return err
	}
	defer func() {
		log.Infof("Gracefully shutting down the database...")
		err := databaseContext.Close()
		if err != nil {
			log.Errorf("Failed to close the database: %s", err)
		}
	}()

	componentManager, err := NewComponentManager(app.cfg, databaseContext)
	if err != nil {
		log.Errorf("Unable to start gxcpeerd: %+v", err)
		return err
	}

	switch app.cfg.Command {
	case config.SyncSubCmd:
		return runSync(componentManager, interrupt)
	case config.VerifySubCmd:
		return runVerify(componentManager.ChainStore(), os.Stdout)
	case config.StatsSubCmd:
		return runStats(componentManager.ChainStore(), os.Stdout)
	}

	defer func() {
		log.Infof("Gracefully shutting down gxcpeerd...")
		componentManager.Stop()
	}()

	componentManager.Start()

	if startedChan != nil {
		startedChan <- struct{}{}
	}

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems such as the
	// Windows service control manager.
	<-interrupt
	return nil
}

// openDB opens the block database in the network's data directory
func openDB(cfg *config.Config) (database.Database, error) {
	dbPath := filepath.Join(cfg.DataDir, blocksDirectoryName)
	log.Infof("Loading database from '%s'", dbPath)
	return ldb.NewLevelDB(dbPath, leveldbCacheSizeMiB)
}
