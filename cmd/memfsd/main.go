// Command memfsd mounts an in-memory FUSE filesystem at a given mount
// point and serves it until unmounted, either by an external umount or by
// SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/timeutil"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacobsa/memfused/fs"
	"github.com/jacobsa/memfused/fuseadapter"
	"github.com/jacobsa/memfused/metrics"
)

const version = "0.1.0"

var (
	fVersion = flag.Bool("version", false, "Print the version and exit.")
	fDebug   = flag.Bool("debug", os.Getenv("MEMFUSED_DEBUG") != "" && os.Getenv("MEMFUSED_DEBUG") != "0", "Log each dispatched operation.")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <mount point>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *fVersion {
		fmt.Println(version)
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	mountPoint := flag.Arg(0)

	logger := log.New(os.Stderr, "memfused: ", log.LstdFlags)

	u, err := user.Current()
	if err != nil {
		logger.Fatalf("user.Current: %v", err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		logger.Fatalf("parse uid: %v", err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		logger.Fatalf("parse gid: %v", err)
	}

	var hookLogger *log.Logger
	if *fDebug {
		hookLogger = logger
	}
	hook := metrics.NewHook(prometheus.DefaultRegisterer, hookLogger)
	fsys := fs.New(timeutil.RealClock(), uint32(uid), uint32(gid))
	adapter := fuseadapter.New(fsys, hook, hookLogger)
	server := fuseutil.NewFileSystemServer(adapter)

	cfg := &fuse.MountConfig{
		DisableWritebackCaching: true,
	}
	if *fDebug {
		cfg.DebugLogger = logger
	}

	mfs, err := fuse.Mount(mountPoint, server, cfg)
	if err != nil {
		logger.Fatalf("Mount: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Printf("received signal, unmounting %s", mountPoint)
		if err := fuse.Unmount(mountPoint); err != nil {
			logger.Printf("unmount: %v", err)
		}
	}()

	if err := mfs.Join(context.Background()); err != nil {
		logger.Fatalf("Join: %v", err)
	}
}
