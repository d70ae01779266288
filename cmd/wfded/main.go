// wfded runs a wfde Server tree as a standalone FTP(S) daemon.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/jgaa/wfde/configtree"
	"github.com/jgaa/wfde/drivers"
	"github.com/jgaa/wfde/entity"
	"github.com/jgaa/wfde/internal/ftpproto"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/worker"
	logadapter "github.com/jgaa/wfde/log/logrus"
)

func main() {
	var confFile, dataDir string

	var onlyConf bool

	flag.StringVar(&confFile, "conf", "", "Configuration file")
	flag.StringVar(&dataDir, "data", "", "Data directory (base for every host's filesystem)")
	flag.BoolVar(&onlyConf, "conf-only", false, "Only create the config")
	flag.Parse()

	autoCreate := onlyConf

	// Mirrors the teacher daemon's own rule: run it bare and you get a
	// local settings.toml created for you, rather than an error.
	if confFile == "" {
		confFile = "settings.toml"
		autoCreate = true
	}

	if dataDir == "" {
		dataDir = "data"
	}

	if autoCreate {
		if _, err := os.Stat(confFile); os.IsNotExist(err) {
			logrus.WithField("confFile", confFile).Info("no config file, creating one")

			if err := os.WriteFile(confFile, defaultConfig(), 0o644); err != nil {
				logrus.WithField("confFile", confFile).Fatalf("couldn't create config file: %v", err)
			}
		}
	}

	v := viper.New()
	v.SetConfigFile(confFile)

	if err := v.ReadInConfig(); err != nil {
		logrus.WithField("confFile", confFile).Fatalf("couldn't read config file: %v", err)
	}

	cfg := configtree.NewViperTree(v)

	srv, err := entity.Build(cfg)
	if err != nil {
		logrus.Fatalf("couldn't build entity tree: %v", err)
	}

	if onlyConf {
		logrus.Info("only creating conf")
		return
	}

	workers := v.GetInt("Workers")
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	logger := logadapter.New(logrus.StandardLogger())

	acceptors, err := buildAcceptors(srv, cfg, dataDir, workers, logger)
	if err != nil {
		logrus.Fatalf("couldn't build acceptors: %v", err)
	}

	if len(acceptors) == 0 {
		logrus.Fatal("no interfaces configured, nothing to serve")
	}

	for _, acc := range acceptors {
		if err := acc.Listen(); err != nil {
			logrus.Fatalf("couldn't listen: %v", err)
		}
	}

	done := make(chan struct{})
	go signalHandler(acceptors, done)

	for _, acc := range acceptors[1:] {
		go serveAcceptor(acc)
	}

	serveAcceptor(acceptors[0])

	<-done
}

func serveAcceptor(acc *entity.Acceptor) {
	if err := acc.Serve(); err != nil {
		logrus.WithField("interface", acc.Iface.Name()).Errorf("listener stopped: %v", err)
	}
}

// buildAcceptors walks the entity tree and, for every Host, builds one
// AferoDriver rooted at <dataDir>/<host name> (grounded on driver_test.go's
// afero.NewBasePathFs usage) plus one Acceptor per Interface under that
// host's protocols. Accounts live alongside Mounts in the raw config tree,
// under Hosts.<name>.Accounts, since account credentials have no bearing on
// the entity tree's permission structure.
func buildAcceptors(srv *entity.Server, cfg configtree.Tree, dataDir string, workers int, logger *logadapter.Logger) ([]*entity.Acceptor, error) {
	hostsCfg := cfg.Sub("Hosts")

	var acceptors []*entity.Acceptor

	for _, host := range srv.Hosts() {
		var accounts []drivers.Account

		if hostsCfg != nil {
			if hostCfg := hostsCfg.Sub(host.Name()); hostCfg != nil {
				accounts = drivers.LoadAccounts(hostCfg.Sub("Accounts"))
			}
		}

		root := filepath.Join(dataDir, host.Name())
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %q: %w", root, err)
		}

		driver := &drivers.AferoDriver{
			Host:     host,
			Fs:       afero.NewBasePathFs(afero.NewOsFs(), root),
			Accounts: accounts,
		}

		tlsConfig, err := driver.TLSConfig()
		if err != nil {
			return nil, fmt.Errorf("host %q: %w", host.Name(), err)
		}

		hostLogger := logger.With("host", host.Name())

		for _, proto := range host.Protocols() {
			for _, iface := range proto.Interfaces() {
				pool := worker.NewPool(workers)

				acceptors = append(acceptors, &entity.Acceptor{
					Iface:         iface,
					Driver:        driver,
					Dispatcher:    ftpproto.NewDispatcher(ftpproto.Commands()),
					Manager:       session.NewManager(pool),
					Logger:        hostLogger.With("interface", iface.Name()),
					TLSConfig:     tlsConfig,
					Implicit:      iface.Implicit,
					PublicIP:      iface.PublicIP,
					PasvPortRange: iface.PasvPortRange,
				})
			}
		}
	}

	return acceptors, nil
}

func signalHandler(acceptors []*entity.Acceptor, done chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(ch)

	<-ch

	logrus.Info("shutting down")

	for _, acc := range acceptors {
		_ = acc.Close()
	}

	for _, acc := range acceptors {
		acc.Manager.CloseAll()
	}

	close(done)
}

func defaultConfig() []byte {
	return []byte(`# wfde daemon configuration file.
#
# Number of worker goroutines per listening interface; defaults to
# runtime.NumCPU() if unset or 0.
# Workers = 4

Name = "wfde"

[Hosts.default]

  [Hosts.default.Accounts.anonymous]
  Pass = ""
  Home = "/"

  [Hosts.default.Mounts.root]
  Vpath = "/"
  Ppath = "."
  Perms = "CAN_READ,CAN_WRITE,CAN_LIST,CAN_ENTER,CAN_DELETE_FILE,CAN_DELETE_DIR,CAN_RENAME,IS_RECURSIVE"

  [Hosts.default.Protocols.ftp.Interfaces.eth0]
  Listen = "0.0.0.0:2121"
  PasvPortStart = "2122"
  PasvPortEnd = "2200"
`)
}
