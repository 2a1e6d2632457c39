package main

import (
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/gfx"
)

type statsSource interface {
	Stats() gfx.Stats
	CacheSizes() (meshes, materials, textures int)
}

// statsLogger logs frame rate, draw counts and heap use once per interval
type statsLogger struct {
	source   statsSource
	timer    *core.FrameTimer
	log      log.FieldLogger
	interval time.Duration
	now      func() time.Time

	last       time.Time
	lastFrames uint64
	lastAlloc  uint64
	memStats   runtime.MemStats
}

func newStatsLogger(source statsSource, timer *core.FrameTimer, logger log.FieldLogger, interval time.Duration) *statsLogger {
	return &statsLogger{
		source:   source,
		timer:    timer,
		log:      logger,
		interval: interval,
		now:      time.Now,
		last:     time.Now(),
	}
}

// tick logs when the interval passed and reports whether it did
func (s *statsLogger) tick() bool {
	now := s.now()
	elapsed := now.Sub(s.last)
	if elapsed < s.interval {
		return false
	}

	stats := s.source.Stats()
	meshes, materials, textures := s.source.CacheSizes()
	runtime.ReadMemStats(&s.memStats)
	allocRate := float64(s.memStats.TotalAlloc-s.lastAlloc) / 1024 / 1024 / elapsed.Seconds()

	s.log.WithFields(log.Fields{
		"fps":        float64(stats.Frames-s.lastFrames) / elapsed.Seconds(),
		"frameMs":    s.timer.FrameTimeMs(),
		"draws":      stats.DrawCalls,
		"sprites":    stats.SpriteCalls,
		"lines":      stats.LineCalls,
		"rejected":   stats.Rejected,
		"deviceLost": stats.DeviceLost,
		"meshes":     meshes,
		"materials":  materials,
		"textures":   textures,
		"heapMB":     float64(s.memStats.Alloc) / 1024 / 1024,
		"allocMBs":   allocRate,
		"cgoCalls":   runtime.NumCgoCall(),
	}).Info("frame stats")

	s.last = now
	s.lastFrames = stats.Frames
	s.lastAlloc = s.memStats.TotalAlloc
	return true
}
