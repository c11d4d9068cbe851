// Command storagecore-demo wires a Config, a DiskManager, a buffer
// Pool, and a B+ tree Index end to end and runs a fixed script of
// inserts, lookups, and a range scan against a temp database file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/relstore/storagecore/internal/bufferpool"
	"github.com/relstore/storagecore/internal/btree"
	"github.com/relstore/storagecore/internal/config"
	"github.com/relstore/storagecore/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to a storagecore YAML config (optional)")
	flag.Parse()

	var cfg config.StorageConfig
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = *loaded
	} else {
		cfg.Storage.PoolSize = config.DefaultPoolSize
		cfg.Storage.DBFile = config.DefaultDBFile
		cfg.Storage.KeyCodec = config.DefaultKeyCodec
	}

	dir, err := os.MkdirTemp("", "storagecore-demo")
	if err != nil {
		log.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)

	dm, err := storage.NewDiskManager(filepath.Join(dir, cfg.Storage.DBFile))
	if err != nil {
		log.Fatalf("open disk manager: %v", err)
	}
	defer dm.Close()

	pool := bufferpool.NewPool(dm, cfg.Storage.PoolSize)
	tree := btree.NewTree[int32](pool, btree.Int32Codec{})

	const n = 20
	for i := int32(1); i <= n; i++ {
		if _, err := tree.Insert(i, btree.RecordID(i*100)); err != nil {
			log.Fatalf("insert %d: %v", i, err)
		}
	}
	fmt.Printf("inserted %d keys\n", n)

	if err := tree.Remove(10); err != nil {
		log.Fatalf("remove 10: %v", err)
	}
	fmt.Println("removed key 10")

	if v, found, err := tree.GetValue(7); err != nil {
		log.Fatalf("get 7: %v", err)
	} else {
		fmt.Printf("get 7 -> value=%d found=%v\n", v, found)
	}

	height, err := tree.Height()
	if err != nil {
		log.Fatalf("height: %v", err)
	}
	fmt.Printf("tree height: %d\n", height)

	it, err := tree.Begin()
	if err != nil {
		log.Fatalf("begin iterator: %v", err)
	}
	fmt.Print("ascending scan:")
	for it.Valid() {
		fmt.Printf(" %d", it.Key())
		it.Next()
	}
	it.Close()
	fmt.Println()

	if err := pool.FlushAll(); err != nil {
		log.Fatalf("flush all: %v", err)
	}
}
