package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"tinyrf/host/serial"
)

var commands = []*ishell.Cmd{
	{
		Name: "ports",
		Help: "list serial ports",
		Func: func(c *ishell.Context) {
			ports, err := serial.List()
			if err != nil {
				c.Err(err)
				return
			}
			if len(ports) == 0 {
				c.Println("no serial ports")
			}
			for _, p := range ports {
				c.Println(p)
			}
		},
	},
	{
		Name: "listen",
		Help: "listen [SECONDS]: print received messages (default 10s)",
		Func: func(c *ishell.Context) {
			d := 10 * time.Second
			if len(c.Args) > 0 {
				secs, err := strconv.Atoi(c.Args[0])
				if err != nil || secs <= 0 {
					c.Err(fmt.Errorf("bad duration %q", c.Args[0]))
					return
				}
				d = time.Duration(secs) * time.Second
			}
			ctx, cancel := context.WithTimeout(context.Background(), d)
			defer cancel()
			err := appFrom(c).Listen(ctx, printMessage(c.Printf))
			if err != nil && ctx.Err() == nil {
				c.Err(err)
			}
		},
	},
	{
		Name: "send",
		Help: "send TEXT...: transmit one message",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("nothing to send"))
				return
			}
			if err := appFrom(c).Send([]byte(strings.Join(c.Args, " "))); err != nil {
				c.Err(err)
				return
			}
			c.Println("sent")
		},
	},
	{
		Name: "replay",
		Help: "replay FILE: decode a raw sniffer capture",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: replay FILE"))
				return
			}
			f, err := os.Open(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			defer f.Close()
			if err := appFrom(c).Replay(f, printMessage(c.Printf)); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name: "stats",
		Help: "show counters from the last listen or replay",
		Func: func(c *ishell.Context) {
			app := appFrom(c)
			c.Printf("messages=%d corrupted=%d noise=%d\n",
				app.counters.Messages, app.counters.Corrupted, app.counters.Noise)
			c.Println(app.stats.String())
		},
	},
	{
		Name: "selftest",
		Help: "selftest [COUNT]: round trip messages through a simulated link",
		Func: func(c *ishell.Context) {
			count := 20
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil || n <= 0 {
					c.Err(fmt.Errorf("bad count %q", c.Args[0]))
					return
				}
				count = n
			}
			results := SelfTest(appFrom(c).cfg, count)
			names := make([]string, 0, len(results))
			for name := range results {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				a, _ := strconv.Atoi(names[i])
				b, _ := strconv.Atoi(names[j])
				return a < b
			})
			for _, name := range names {
				if err := results[name]; err != nil {
					c.Printf("%-5s FAIL %v\n", name, err)
				} else {
					c.Printf("%-5s ok\n", name)
				}
			}
		},
	},
	{
		Name: "config",
		Help: "show the radio configuration",
		Func: func(c *ishell.Context) {
			cfg := appFrom(c).cfg
			c.Println(describe(cfg))
			codec := cfg.Codec()
			c.Printf("start %v, one %v, zero %v, max payload %d\n",
				codec.StartBand(), codec.OneBand(), codec.ZeroBand(), cfg.Layout().MaxPayload())
		},
	},
}

func appFrom(c *ishell.Context) *App {
	return c.Get(appKey).(*App)
}
