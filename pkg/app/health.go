package app

import (
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// health is the body of GET /health, e.g.
//
//	{"Ports":2,"Matrices":1,"OccupiedPins":10,"ActivePorts":3,"Cycles":48211,
//	 "Goroutines":9,"HeapMB":3,"SysMB":12,"Version":"1.6.10+20261001","Go":"go1.23.2",...}
type health struct {
	Ports        int
	Matrices     int
	OccupiedPins int
	ActivePorts  int
	Cycles       uint64
	Goroutines   int
	CPUs         int
	HeapBytes    uint64
	HeapMB       uint64
	SysBytes     uint64
	SysMB        uint64
	Version      string
	Go           string
	HostName     string
	Time         string
}

func (app *App) HandleHealth() fiber.Handler {
	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.DebugLog.Print("web request health")

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		return ctx.JSON(health{
			Ports:        len(app.ports),
			Matrices:     len(app.matrices),
			OccupiedPins: len(app.manager.OccupiedPins()),
			ActivePorts:  app.manager.Scheduler().Len(),
			Cycles:       app.manager.Scheduler().Cycles(),
			Goroutines:   runtime.NumGoroutine(),
			CPUs:         runtime.NumCPU(),
			HeapBytes:    mem.Alloc,
			HeapMB:       mem.Alloc >> 20,
			SysBytes:     mem.Sys,
			SysMB:        mem.Sys >> 20,
			Version:      VERSION,
			Go:           runtime.Version(),
			HostName:     host,
			Time:         time.Now().Format(time.RFC3339),
		})
	}
}
