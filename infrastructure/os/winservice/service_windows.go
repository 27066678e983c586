// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package winservice

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/winsvc/eventlog"
	"github.com/btcsuite/winsvc/mgr"
	"github.com/btcsuite/winsvc/svc"
	"github.com/gxcnet/gxcpeerd/infrastructure/config"
	"github.com/gxcnet/gxcpeerd/infrastructure/os/signal"
	"github.com/gxcnet/gxcpeerd/version"
	"github.com/pkg/errors"
)

// Service houses the main service handler which handles all service
// updates and launching the application's main.
type Service struct {
	main        MainFunc
	description *ServiceDescription
	cfg         *config.Config
	eventLog    *eventlog.Log
}

func newService(main MainFunc, description *ServiceDescription, cfg *config.Config) *Service {
	return &Service{
		main:        main,
		description: description,
		cfg:         cfg,
	}
}

// Start starts the service
func (s *Service) Start() error {
	elog, err := eventlog.Open(s.description.Name)
	if err != nil {
		return err
	}
	s.eventLog = elog
	defer s.eventLog.Close()

	err = svc.Run(s.description.Name, s)
	if err != nil {
		s.eventLog.Error(1, fmt.Sprintf("Service start failed: %s", err))
		return err
	}

	return nil
}

// Execute is the main entry point the winsvc package calls when receiving
// information from the Windows service control manager. It launches the
// long-running main (which is the real meat of gxcpeerd), handles service
// change requests, and notifies the service control manager of changes.
func (s *Service) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	// Service start is pending.
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown
	changes <- svc.Status{State: svc.StartPending}

	// Start main in a separate goroutine so the service can start
	// quickly. Shutdown (along with a potential error) is reported via
	// doneChan. startedChan is notified once the node is started so this
	// can be properly logged
	doneChan := make(chan error)
	startedChan := make(chan struct{})
	spawn("Service.Execute-main", func() {
		err := s.main(startedChan)
		doneChan <- err
	})

	// Service is now started.
	changes <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}
loop:
	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus

			case svc.Stop, svc.Shutdown:
				// Service stop is pending. Don't accept any
				// more commands while pending.
				changes <- svc.Status{State: svc.StopPending}

				// Signal the main function to exit.
				signal.ShutdownRequestChannel <- struct{}{}

			default:
				s.eventLog.Error(1, fmt.Sprintf("Unexpected control "+
					"request #%d.", c))
			}

		case <-startedChan:
			s.logServiceStart()

		case err := <-doneChan:
			if err != nil {
				s.eventLog.Error(1, err.Error())
			}
			break loop
		}
	}

	// Service is now stopped.
	changes <- svc.Status{State: svc.Stopped}
	return false, 0
}

// logServiceStart logs information about gxcpeerd when the node has
// been started to the Windows event log.
func (s *Service) logServiceStart() {
	var message string
	message += fmt.Sprintf("%s version %s\n", s.description.DisplayName, version.Version())
	message += fmt.Sprintf("Configuration file: %s\n", s.cfg.ConfigFile)
	message += fmt.Sprintf("Application directory: %s\n", s.cfg.AppDir)
	message += fmt.Sprintf("Data directory: %s\n", s.cfg.DataDir)
	message += fmt.Sprintf("Network: %s\n", s.cfg.NetParams().Name)

	s.eventLog.Info(1, message)
}

// performServiceCommand attempts to run one of the supported service commands
// provided on the command line via the service command flag. An appropriate
// error is returned if an invalid command is specified.
func (s *Service) performServiceCommand() error {
	command := s.cfg.ServiceOptions.ServiceCommand
	log.Infof("Running service command %s", command)

	var err error
	switch command {
	case "install":
		err = s.installService()

	case "remove":
		err = s.removeService()

	case "start":
		err = s.startService()

	case "stop":
		err = s.controlService(svc.Stop, svc.Stopped)

	default:
		err = errors.Errorf("invalid service command [%s]", command)
	}

	return err
}

// installService attempts to install the gxcpeerd service. Typically this
// should be done by the msi installer, but it is provided here since it can
// be useful for development.
func (s *Service) installService() error {
	// Get the path of the current executable. This is needed because
	// os.Args[0] can vary depending on how the application was launched.
	// For example, under cmd.exe it will only be the name of the app
	// without the path or extension, but under mingw it will be the full
	// path including the extension.
	exePath, err := filepath.Abs(os.Args[0])
	if err != nil {
		return err
	}
	if filepath.Ext(exePath) == "" {
		exePath += ".exe"
	}

	// Connect to the windows service manager.
	serviceManager, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer serviceManager.Disconnect()

	// Ensure the service doesn't already exist.
	service, err := serviceManager.OpenService(s.description.Name)
	if err == nil {
		service.Close()
		return errors.Errorf("service %s already exists", s.description.Name)
	}

	// Install the service.
	service, err = serviceManager.CreateService(s.description.Name, exePath, mgr.Config{
		DisplayName: s.description.DisplayName,
		Description: s.description.Description,
	})
	if err != nil {
		return err
	}
	defer service.Close()

	// Support events to the event log using the standard "standard" Windows
	// EventCreate.exe message file. This allows easy logging of custom
	// messages instead of needing to create our own message catalog.
	eventlog.Remove(s.description.Name)
	eventsSupported := uint32(eventlog.Error | eventlog.Warning | eventlog.Info)
	return eventlog.InstallAsEventCreate(s.description.Name, eventsSupported)
}

// removeService attempts to uninstall the gxcpeerd service. The eventlog
// entry is left in place so existing event log messages stay readable.
func (s *Service) removeService() error {
	// Connect to the windows service manager.
	serviceManager, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer serviceManager.Disconnect()

	// Ensure the service exists.
	service, err := serviceManager.OpenService(s.description.Name)
	if err != nil {
		return errors.Errorf("service %s is not installed", s.description.Name)
	}
	defer service.Close()

	// Remove the service.
	return service.Delete()
}

// startService attempts to start the gxcpeerd service.
func (s *Service) startService() error {
	// Connect to the windows service manager.
	serviceManager, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer serviceManager.Disconnect()

	service, err := serviceManager.OpenService(s.description.Name)
	if err != nil {
		return errors.Errorf("could not access service: %s", err)
	}
	defer service.Close()

	err = service.Start(os.Args)
	if err != nil {
		return errors.Errorf("could not start service: %s", err)
	}

	return nil
}

// controlService allows commands which change the status of the service. It
// also waits for up to 10 seconds for the service to change to the passed
// state.
func (s *Service) controlService(c svc.Cmd, to svc.State) error {
	// Connect to the windows service manager.
	serviceManager, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer serviceManager.Disconnect()

	service, err := serviceManager.OpenService(s.description.Name)
	if err != nil {
		return errors.Errorf("could not access service: %s", err)
	}
	defer service.Close()

	status, err := service.Control(c)
	if err != nil {
		return errors.Errorf("could not send control=%d: %s", c, err)
	}

	// Send the control message.
	timeout := time.Now().Add(10 * time.Second)
	for status.State != to {
		if timeout.Before(time.Now()) {
			return errors.Errorf("timeout waiting for service to go "+
				"to state=%d", to)
		}
		time.Sleep(300 * time.Millisecond)
		status, err = service.Query()
		if err != nil {
			return errors.Errorf("could not retrieve service "+
				"status: %s", err)
		}
	}

	return nil
}
