// Package main provides a small web-based monitor for a running beanq
// server: it speaks the wire protocol itself (stats, list-tubes,
// stats-tube) rather than reaching into the server's storage directly,
// since the registry's state lives only in that process's memory.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"gopkg.in/yaml.v3"
)

// Inspector is a minimal wire-protocol client used read-only, for
// monitoring purposes only.
type Inspector struct {
	addr    string
	timeout time.Duration
}

// NewInspector returns an Inspector that dials addr fresh for every query.
func NewInspector(addr string) *Inspector {
	return &Inspector{addr: addr, timeout: 3 * time.Second}
}

func (i *Inspector) dial() (net.Conn, *bufio.Reader, error) {
	conn, err := net.DialTimeout("tcp", i.addr, i.timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", i.addr, err)
	}
	conn.SetDeadline(time.Now().Add(i.timeout))
	return conn, bufio.NewReader(conn), nil
}

// yamlBody reads an "OK <n>\r\n<n bytes>\r\n" response following cmd and
// unmarshals the payload into out.
func (i *Inspector) yamlBody(cmd string, out interface{}) error {
	conn, r, err := i.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := fmt.Fprint(conn, cmd); err != nil {
		return err
	}
	header, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	var n int
	if _, err := fmt.Sscanf(header, "OK %d", &n); err != nil {
		return fmt.Errorf("unexpected response: %q", header)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return yaml.Unmarshal(payload, out)
}

// ServerStats mirrors the subset of the `stats` response this monitor
// displays.
type ServerStats struct {
	CurrentJobsReady    int    `yaml:"current-jobs-ready"`
	CurrentJobsReserved int    `yaml:"current-jobs-reserved"`
	CurrentJobsDelayed  int    `yaml:"current-jobs-delayed"`
	CurrentJobsBuried   int    `yaml:"current-jobs-buried"`
	CurrentTubes        int    `yaml:"current-tubes"`
	CurrentConnections  int    `yaml:"current-connections"`
	TotalJobs           uint64 `yaml:"total-jobs"`
	Version             string `yaml:"version"`
	Uptime              int64  `yaml:"uptime"`
	Draining            bool   `yaml:"draining"`
}

// TubeStats mirrors the subset of a `stats-tube` response this monitor
// displays.
type TubeStats struct {
	Name                string `yaml:"name"`
	CurrentJobsReady    int    `yaml:"current-jobs-ready"`
	CurrentJobsReserved int    `yaml:"current-jobs-reserved"`
	CurrentJobsDelayed  int    `yaml:"current-jobs-delayed"`
	CurrentJobsBuried   int    `yaml:"current-jobs-buried"`
	TotalJobs           uint64 `yaml:"total-jobs"`
	Pause               uint64 `yaml:"pause"`
}

// GetStats fetches the server's stats response.
func (i *Inspector) GetStats() (ServerStats, error) {
	var s ServerStats
	err := i.yamlBody("stats\r\n", &s)
	return s, err
}

// GetTubes lists every tube's name, then fetches each one's stats-tube.
func (i *Inspector) GetTubes() ([]TubeStats, error) {
	names, err := i.listTubes()
	if err != nil {
		return nil, err
	}
	tubes := make([]TubeStats, 0, len(names))
	for _, name := range names {
		var t TubeStats
		if err := i.yamlBody(fmt.Sprintf("stats-tube %s\r\n", name), &t); err != nil {
			continue
		}
		tubes = append(tubes, t)
	}
	return tubes, nil
}

func (i *Inspector) listTubes() ([]string, error) {
	var names []string
	err := i.yamlBody("list-tubes\r\n", &names)
	return names, err
}
