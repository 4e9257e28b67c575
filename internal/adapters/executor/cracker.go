package executor

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

const crackBinary = "hashcat"

// Cracker submits capture artifacts to hashcat asynchronously. Results
// reach subscribers through callbacks, never a synchronous wait. It
// implements ports.CrackingEngine.
type Cracker struct {
	binary   string
	wordlist string
	potfile  string

	mu        sync.Mutex
	callbacks []func(domain.CrackResult)

	jobs chan crackJob
	once sync.Once
}

type crackJob struct {
	id       string
	artifact domain.Artifact
}

// NewCracker queues jobs against the given wordlist. The queue is drained
// by a single worker so cracking never competes with captures for CPU.
func NewCracker(wordlist, potfile string) *Cracker {
	return &Cracker{
		binary:   crackBinary,
		wordlist: wordlist,
		potfile:  potfile,
		jobs:     make(chan crackJob, 64),
	}
}

// Start launches the worker. Jobs submitted before Start stay queued.
func (c *Cracker) Start(ctx context.Context) {
	c.once.Do(func() {
		go c.worker(ctx)
	})
}

// Submit enqueues an artifact and returns its job id.
func (c *Cracker) Submit(artifact domain.Artifact) (string, error) {
	if _, err := exec.LookPath(c.binary); err != nil {
		return "", fmt.Errorf("%s not installed: %w", c.binary, err)
	}
	job := crackJob{id: uuid.New().String(), artifact: artifact}
	select {
	case c.jobs <- job:
		return job.id, nil
	default:
		return "", fmt.Errorf("crack queue full, dropping %s", artifact.Path)
	}
}

// Subscribe registers a callback invoked for every finished job.
func (c *Cracker) Subscribe(fn func(domain.CrackResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

func (c *Cracker) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-c.jobs:
			res := c.crack(ctx, job)
			c.mu.Lock()
			cbs := append([]func(domain.CrackResult){}, c.callbacks...)
			c.mu.Unlock()
			for _, cb := range cbs {
				cb(res)
			}
		}
	}
}

func (c *Cracker) crack(ctx context.Context, job crackJob) domain.CrackResult {
	res := domain.CrackResult{JobID: job.id, TargetID: job.artifact.TargetID}

	// 22000 covers both PMKID and EAPOL handshake material.
	cmd := exec.CommandContext(ctx, c.binary,
		"-m", "22000",
		"--potfile-path", c.potfile,
		"--quiet",
		job.artifact.Path,
		c.wordlist,
	)
	if err := cmd.Run(); err != nil {
		// Exit status 1 means exhausted wordlist, not a tool failure.
		log.Printf("[CRACK] Job %s finished without a hit: %v", job.id, err)
		return res
	}

	if key, ok := c.lookupPotfile(job.artifact.TargetID); ok {
		res.Cracked = true
		res.Key = key
		log.Printf("[CRACK] Job %s recovered key for %s", job.id, job.artifact.TargetID)
	}
	return res
}

// lookupPotfile scans hashcat's potfile for a line matching the target.
// 22000 potfile lines end with ...*bssid*ssid:password.
func (c *Cracker) lookupPotfile(bssid string) (string, bool) {
	f, err := os.Open(c.potfile)
	if err != nil {
		return "", false
	}
	defer f.Close()

	needle := strings.ToLower(strings.ReplaceAll(bssid, ":", ""))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		if idx := strings.LastIndex(line, ":"); idx >= 0 && idx < len(line)-1 {
			return line[idx+1:], true
		}
	}
	return "", false
}
