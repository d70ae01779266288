package entity

import (
	"fmt"
	"net"
	"strconv"

	"github.com/jgaa/wfde/configtree"
	"github.com/jgaa/wfde/internal/transfer"
	"github.com/jgaa/wfde/internal/vpath"
)

// Build constructs a full Server tree from cfg, mirroring
// original_source/src/wfde/WfdeEntity.h's Server -> Host -> Protocol ->
// Interface layout: cfg is expected to have the shape
//
//	Name: "..."
//	Mounts: { <name>: { Vpath, Ppath, Perms, Type } }
//	Hosts:
//	  <name>:
//	    Mounts: { ... }
//	    Protocols:
//	      <name>:
//	        Mounts: { ... }
//	        Interfaces:
//	          <name>: { Listen: "host:port", Mounts: { ... } }
func Build(cfg configtree.Tree) (*Server, error) {
	srv := NewServer(cfg.GetValue("Name", "wfde"))

	if perms, err := loadMounts(cfg.Sub("Mounts")); err != nil {
		return nil, fmt.Errorf("server mounts: %w", err)
	} else if perms != nil {
		srv.SetPermissions(perms)
	}

	hostsCfg := cfg.Sub("Hosts")
	if hostsCfg == nil {
		return srv, nil
	}

	for _, hostName := range cfg.EnumNodes("Hosts") {
		hostCfg := hostsCfg.Sub(hostName)
		if hostCfg == nil {
			continue
		}

		if err := buildHost(srv, hostName, hostCfg); err != nil {
			return nil, err
		}
	}

	return srv, nil
}

func buildHost(srv *Server, name string, cfg configtree.Tree) error {
	host, err := srv.AddHost(name)
	if err != nil {
		return err
	}

	if perms, err := loadMounts(cfg.Sub("Mounts")); err != nil {
		return fmt.Errorf("host %q mounts: %w", name, err)
	} else if perms != nil {
		host.SetPermissions(perms)
	}

	protocolsCfg := cfg.Sub("Protocols")
	if protocolsCfg == nil {
		return nil
	}

	for _, protoName := range cfg.EnumNodes("Protocols") {
		protoCfg := protocolsCfg.Sub(protoName)
		if protoCfg == nil {
			continue
		}

		if err := buildProtocol(host, protoName, protoCfg); err != nil {
			return err
		}
	}

	return nil
}

func buildProtocol(host *Host, name string, cfg configtree.Tree) error {
	proto, err := host.AddProtocol(name)
	if err != nil {
		return err
	}

	if perms, err := loadMounts(cfg.Sub("Mounts")); err != nil {
		return fmt.Errorf("protocol %q mounts: %w", name, err)
	} else if perms != nil {
		proto.SetPermissions(perms)
	}

	interfacesCfg := cfg.Sub("Interfaces")
	if interfacesCfg == nil {
		return nil
	}

	for _, ifaceName := range cfg.EnumNodes("Interfaces") {
		ifaceCfg := interfacesCfg.Sub(ifaceName)
		if ifaceCfg == nil {
			continue
		}

		if err := buildInterface(proto, ifaceName, ifaceCfg); err != nil {
			return err
		}
	}

	return nil
}

func buildInterface(proto *Protocol, name string, cfg configtree.Tree) error {
	iface, err := proto.AddInterface(name, cfg.GetValue("Listen", ":2121"))
	if err != nil {
		return err
	}

	perms, err := loadMounts(cfg.Sub("Mounts"))
	if err != nil {
		return fmt.Errorf("interface %q mounts: %w", name, err)
	}

	if perms != nil {
		iface.SetPermissions(perms)
	}

	if ip := cfg.GetValue("PublicIP", ""); ip != "" {
		iface.PublicIP = net.ParseIP(ip)
	}

	if pr, err := loadPasvPortRange(cfg); err != nil {
		return fmt.Errorf("interface %q PasvPortRange: %w", name, err)
	} else if pr != nil {
		iface.PasvPortRange = pr
	}

	iface.Implicit = cfg.GetValue("Implicit", "false") == "true"

	return nil
}

// loadPasvPortRange reads PasvPortStart/PasvPortEnd: nil when neither is
// set, an error when only one is set or either is not a number.
func loadPasvPortRange(cfg configtree.Tree) (*transfer.PortRange, error) {
	startStr := cfg.GetValue("PasvPortStart", "")
	endStr := cfg.GetValue("PasvPortEnd", "")

	if startStr == "" && endStr == "" {
		return nil, nil
	}

	start, err := strconv.Atoi(startStr)
	if err != nil {
		return nil, fmt.Errorf("PasvPortStart: %w", err)
	}

	end, err := strconv.Atoi(endStr)
	if err != nil {
		return nil, fmt.Errorf("PasvPortEnd: %w", err)
	}

	return &transfer.PortRange{Start: start, End: end}, nil
}

// loadMounts reads every child of a "Mounts" subtree into a vpath.Path and
// assembles a Permissions set; nil, nil if mountsCfg itself is nil (no
// local scope at this node).
func loadMounts(mountsCfg configtree.Tree) (*vpath.Permissions, error) {
	if mountsCfg == nil {
		return nil, nil
	}

	perms := vpath.NewPermissions()

	for _, name := range mountsCfg.EnumNodes("") {
		mountCfg := mountsCfg.Sub(name)
		if mountCfg == nil {
			continue
		}

		bits, err := vpath.ParsePermBits(mountCfg.GetValue("Perms", ""))
		if err != nil {
			return nil, fmt.Errorf("mount %q: %w", name, err)
		}

		kind := vpath.TypeDirectory
		if mountCfg.GetValue("Type", "dir") == "file" {
			kind = vpath.TypeFile
		}

		path := vpath.New(
			mountCfg.GetValue("Vpath", "/"),
			mountCfg.GetValue("Ppath", ""),
			bits,
			kind,
		)

		if err := perms.AddPath(path); err != nil {
			return nil, fmt.Errorf("mount %q: %w", name, err)
		}
	}

	return perms, nil
}
