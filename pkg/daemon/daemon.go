package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/beamd-dev/beamd/pkg/config"
	"github.com/beamd-dev/beamd/pkg/controller"
	"github.com/beamd-dev/beamd/pkg/device"
	"github.com/beamd-dev/beamd/pkg/events"
	"github.com/beamd-dev/beamd/pkg/mapping"
	"github.com/beamd-dev/beamd/pkg/state"
)

// Daemon serves every configured laser line over a unix socket.
type Daemon struct {
	conf  config.Config
	store state.Store
	hub   *events.EventHub

	controllers map[string]*controller.Controller
	order       []string
	schedulers  map[string]*Scheduler
	monitors    map[string]*monitor
	conns       map[string]*device.Conn

	stopCh chan struct{}
}

func (d *Daemon) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/lines", d.getLines)
	router.GET("/lines/:name/power", d.getPower)
	router.PUT("/lines/:name/power", d.setPower)
	router.GET("/lines/:name/power-bounds", d.getPowerBounds)
	router.GET("/lines/:name/control-bounds", d.getControlBounds)
	router.GET("/lines/:name/control", d.getControl)
	router.GET("/lines/:name/switch", d.getSwitch)
	router.PUT("/lines/:name/switch", d.setSwitch)
	router.POST("/lines/:name/calibration", d.startCalibration)
	router.DELETE("/lines/:name/calibration", d.abortCalibration)
	router.GET("/lines/:name/calibration", d.getCalibration)
	router.GET("/lines/:name/curve", d.getCurve)
	router.GET("/lines/:name/readings", d.getReadings)
	router.POST("/lines/:name/fit", d.fitLine)
	router.GET("/lines/:name/mapping", d.getMapping)
	router.PUT("/lines/:name/mapping", d.setMapping)
	router.GET("/lines/:name/schedule", d.getSchedule)
	router.PUT("/lines/:name/schedule", d.setSchedule)
	router.POST("/lines/:name/schedule/postpone", d.postponeSchedule)
	router.POST("/lines/:name/schedule/skip", d.skipSchedule)
	router.GET("/events", d.streamEvents)
	router.GET("/version", d.getVersion)

	return router
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run(configPath, statePath, unixSocketPath string, simulate, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	d := &Daemon{
		conf:        conf,
		store:       state.NewFileStore(statePath),
		hub:         events.NewEventHub(),
		controllers: make(map[string]*controller.Controller),
		schedulers:  make(map[string]*Scheduler),
		monitors:    make(map[string]*monitor),
		conns:       make(map[string]*device.Conn),
		stopCh:      make(chan struct{}),
	}

	if err := d.buildLines(simulate); err != nil {
		logrus.Fatalf("failed to open bench hardware: %v", err)
	}

	router := d.setupRoutes()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := d.conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			// Hardware wiring is fixed at startup; only schedules are
			// re-applied here.
			d.applySchedules()
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	for _, m := range d.monitors {
		go m.run()
	}
	for _, s := range d.schedulers {
		s.Start()
	}

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping schedulers and monitors")
	for _, s := range d.schedulers {
		s.Stop()
	}
	close(d.stopCh)

	for name, c := range d.controllers {
		if c.SweepActive() {
			logrus.Infof("aborting active calibration sweep of line %s", name)
			if err := c.AbortCalibration(); err != nil {
				logrus.Errorf("failed to abort sweep of line %s: %v", name, err)
			}
		}
	}

	logrus.Info("closing serial connections")
	for _, conn := range d.conns {
		if err := conn.Close(); err != nil {
			logrus.Errorf("failed to close %s: %v", conn.Name(), err)
		}
	}

	logrus.Info("exiting")
	return nil
}

// conn returns the shared serial connection for a device path, opening it on
// first use. Several adapters on one bench controller share a single line.
func (d *Daemon) conn(devicePath string, baud int) (*device.Conn, error) {
	if c, ok := d.conns[devicePath]; ok {
		return c, nil
	}
	c, err := device.Open(devicePath, baud)
	if err != nil {
		return nil, err
	}
	d.conns[devicePath] = c
	return c, nil
}

// buildLines opens the bench hardware for every configured line. With
// simulate set, every adapter is replaced by the in-memory bench; a config
// without any lines gets a single simulated one so the daemon is usable out
// of the box.
func (d *Daemon) buildLines(simulate bool) error {
	lines := d.conf.Lines()
	if simulate && len(lines) == 0 {
		meter := &config.MeterConfig{Device: "sim"}
		sw := &config.SwitchConfig{Device: "sim"}
		lines = []config.Line{{
			Name:   "sim",
			Source: config.SourceConfig{Kind: config.SourceSim},
			Meter:  meter,
			Switch: sw,
		}}
	}

	for _, l := range lines {
		c, err := d.buildLine(l, simulate)
		if err != nil {
			return err
		}
		d.controllers[l.Name] = c
		d.order = append(d.order, l.Name)

		if c.HasMeter() {
			d.monitors[l.Name] = newMonitor(c, d.hub, l.MonitorInterval(), d.stopCh)
		}

		s := NewScheduler(d.recalTask(c), d.recalPreCheck(c), d.recalUpcoming(c), d.recalError(c))
		d.schedulers[l.Name] = s
		if l.Recalibrate != "" {
			if err := s.Schedule(l.Recalibrate); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Daemon) buildLine(l config.Line, simulate bool) (*controller.Controller, error) {
	var (
		src device.ControlSource
		mtr device.PowerMeter
		sw  device.Switch
		err error
	)

	if simulate || l.Source.Kind == config.SourceSim {
		sim := device.NewSim(0, 10)
		src = sim
		if l.Meter != nil {
			mtr = sim
		}
		if l.Switch != nil {
			sw = sim
		}
	} else {
		var conn *device.Conn
		conn, err = d.conn(l.Source.Device, l.Source.BaudRate())
		if err != nil {
			return nil, err
		}
		switch l.Source.Kind {
		case config.SourceAnalog:
			src, err = device.NewAnalogOutput(conn, l.Source.Channel)
		case config.SourceScanner:
			src, err = device.NewScannerChannel(conn, l.Source.Index)
		case config.SourceMotor:
			axis := l.Source.Axis
			if axis == "" {
				axis = "phi"
			}
			src, err = device.NewMotorAxis(conn, axis)
		}
		if err != nil {
			return nil, err
		}

		if l.Meter != nil {
			conn, err = d.conn(l.Meter.Device, l.Meter.BaudRate())
			if err != nil {
				return nil, err
			}
			mtr = device.NewMeter(conn)
		}
		if l.Switch != nil {
			conn, err = d.conn(l.Switch.Device, l.Switch.BaudRate())
			if err != nil {
				return nil, err
			}
			sw = device.NewShutter(conn, l.Switch.Index)
		}
	}

	return controller.New(controller.Options{
		Name:        l.Name,
		Color:       l.Color,
		Source:      src,
		Meter:       mtr,
		Switch:      sw,
		Override:    mapping.Override{Low: l.ControlLow, High: l.ControlHigh},
		DefaultMode: mapping.Mode(l.DefaultMode),
		Hub:         d.hub,
		Store:       d.store,
	}), nil
}

// applySchedules pushes the configured cron expressions into the running
// schedulers after a config reload.
func (d *Daemon) applySchedules() {
	for _, l := range d.conf.Lines() {
		s, ok := d.schedulers[l.Name]
		if !ok {
			logrus.Warnf("line %s appeared in config after startup; restart to use it", l.Name)
			continue
		}
		if l.Recalibrate == "" {
			s.Unschedule()
			continue
		}
		if err := s.Schedule(l.Recalibrate); err != nil {
			logrus.Errorf("bad recalibrate schedule for line %s: %v", l.Name, err)
		}
	}
}

func (d *Daemon) line(name string) (*controller.Controller, bool) {
	c, ok := d.controllers[name]
	return c, ok
}
