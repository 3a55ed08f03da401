package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"

	"github.com/infinivision/pagecache/cache"
	"github.com/infinivision/pagecache/cache/scheduler"
	"github.com/infinivision/pagecache/constant"
	"github.com/infinivision/pagecache/disk"
	"github.com/infinivision/pagecache/memory"
)

const (
	Pages   = 1024
	Workers = 8
	Rounds  = 100000
)

func main() {
	mgr, err := memory.New(1 << 26)
	if err != nil {
		log.Fatal(err)
	}
	defer mgr.Close()
	d, err := disk.New("test.pc")
	if err != nil {
		log.Fatal(err)
	}
	defer os.Remove("test.pc")
	schd := scheduler.New(d)
	defer schd.Close()
	cfg := cache.DefaultConfig()
	cfg.CacheSize = 1 << 22
	c, err := cache.New(mgr, cfg)
	if err != nil {
		log.Fatal(err)
	}
	{
		buf := make([]byte, constant.PageSize)
		for i := int64(0); i < Pages; i++ {
			off := i * constant.PageSize
			binary.LittleEndian.PutUint64(buf, uint64(off))
			if err := d.Write(off, buf); err != nil {
				log.Fatal(err)
			}
		}
	}
	{
		var wg sync.WaitGroup
		for w := 0; w < Workers; w++ {
			wg.Add(1)
			go func(seed int64) {
				defer wg.Done()
				r := rand.New(rand.NewSource(seed))
				for i := 0; i < Rounds; i++ {
					off := r.Int63n(Pages) * constant.PageSize
					pg, _, err := c.Search(off)
					if err != nil {
						log.Fatal(err)
					}
					if err := schd.Load(pg); err != nil {
						log.Fatal(err)
					}
					if got := int64(binary.LittleEndian.Uint64(pg.Buffer())); got != off {
						log.Fatal(fmt.Errorf("page %v holds %v", off, got))
					}
					pg.Release()
				}
			}(int64(w))
		}
		wg.Wait()
	}
	fmt.Printf("%v rounds over %v workers, final size %v cells\n", Workers*Rounds, Workers, c.Size())
}
