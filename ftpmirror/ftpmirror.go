// Package ftpmirror implements the FTP half of the Retry Fetcher: a
// session over the TNDS FTP server that mirrors newer-than-local files,
// with transparent reconnect on a dropped connection and a bounded outer
// retry around the whole mirror operation.
package ftpmirror

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"

	pipelineerrors "github.com/uktransitdata/corpus-pipeline/errors"
)

// Config configures a mirror Session.
type Config struct {
	Host          string
	User          string
	Password      string
	RemoteDir     string
	DialTimeout   time.Duration
	RetryAttempts int
	RetryInterval time.Duration
}

// Session wraps a live FTP connection, transparently reconnecting when the
// server drops it.
type Session struct {
	cfg  Config
	conn *ftp.ServerConn
}

// Dial opens a new FTP session, logs in, and changes into the configured
// remote directory.
func Dial(cfg Config) (*Session, error) {
	if cfg.User == "" || cfg.Password == "" {
		return nil, pipelineerrors.New(pipelineerrors.ConfigMissing, "missing FTP credentials")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}

	s := &Session{cfg: cfg}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) connect() error {
	conn, err := ftp.Dial(s.cfg.Host+":21", ftp.DialWithTimeout(s.cfg.DialTimeout))
	if err != nil {
		return pipelineerrors.New(pipelineerrors.FtpDropped, "cannot dial FTP host").WithCause(err)
	}
	if err := conn.Login(s.cfg.User, s.cfg.Password); err != nil {
		return pipelineerrors.New(pipelineerrors.FtpDropped, "cannot log in to FTP host").WithCause(err)
	}
	if s.cfg.RemoteDir != "" {
		if err := conn.ChangeDir(s.cfg.RemoteDir); err != nil {
			return pipelineerrors.New(pipelineerrors.FtpDropped, "cannot change to remote directory").WithCause(err)
		}
	}
	s.conn = conn
	return nil
}

// ensureAlive issues a NOOP liveness probe and transparently reconnects if
// the connection has been dropped by the server.
func (s *Session) ensureAlive() error {
	if s.conn != nil && s.conn.NoOp() == nil {
		return nil
	}
	return s.connect()
}

// Close terminates the underlying FTP connection.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Quit()
}

// RemoteFile describes one file discovered on the FTP server.
type RemoteFile struct {
	Name     string
	Modified time.Time
}

// List returns the sorted-by-name set of files in the remote directory.
func (s *Session) List() ([]RemoteFile, error) {
	if err := s.ensureAlive(); err != nil {
		return nil, err
	}
	names, err := s.conn.NameList("")
	if err != nil {
		return nil, pipelineerrors.New(pipelineerrors.FtpDropped, "cannot list remote directory").WithCause(err)
	}
	sort.Strings(names)

	files := make([]RemoteFile, 0, len(names))
	for _, name := range names {
		if err := s.ensureAlive(); err != nil {
			return nil, err
		}
		modified, err := s.conn.GetTime(name)
		if err != nil {
			return nil, pipelineerrors.New(pipelineerrors.FtpDropped, "cannot fetch MDTM for "+name).WithCause(err)
		}
		files = append(files, RemoteFile{Name: name, Modified: modified})
	}
	return files, nil
}

// Download retrieves one remote file into localPath, creating parent
// directories as needed.
func (s *Session) Download(remoteName, localPath string) error {
	if err := s.ensureAlive(); err != nil {
		return err
	}
	resp, err := s.conn.Retr(remoteName)
	if err != nil {
		return pipelineerrors.New(pipelineerrors.FtpDropped, "cannot retrieve "+remoteName).WithCause(err)
	}
	defer func() { _ = resp.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return fmt.Errorf("create local directory: %w", err)
	}
	f, err := os.Create(localPath) //nolint:gosec // path is constructed from configured data dir
	if err != nil {
		return fmt.Errorf("create local file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, resp); err != nil {
		return pipelineerrors.New(pipelineerrors.FtpDropped, "cannot write "+remoteName).WithCause(err)
	}
	return nil
}

// Mirror downloads every remote file newer than its local counterpart
// (or not yet present locally) into localDir.
func (s *Session) Mirror(localDir string) ([]string, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}

	var downloaded []string
	for _, rf := range files {
		localPath := filepath.Join(localDir, rf.Name)
		info, statErr := os.Stat(localPath)
		needsFetch := statErr != nil || rf.Modified.After(info.ModTime())
		if !needsFetch {
			continue
		}
		if err := s.Download(rf.Name, localPath); err != nil {
			return downloaded, err
		}
		downloaded = append(downloaded, localPath)
	}
	return downloaded, nil
}

// MirrorWithRetry runs Mirror, retrying the whole operation up to
// cfg.RetryAttempts times with cfg.RetryInterval between attempts, as the
// bounded outer retry around a session that may drop entirely.
func MirrorWithRetry(cfg Config, localDir string) ([]string, error) {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		session, err := Dial(cfg)
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return nil, err
			}
			time.Sleep(interval)
			continue
		}

		downloaded, err := session.Mirror(localDir)
		_ = session.Close()
		if err == nil {
			return downloaded, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return downloaded, err
		}
		time.Sleep(interval)
	}

	return nil, pipelineerrors.New(pipelineerrors.FtpDropped,
		fmt.Sprintf("mirror failed after %d attempts", attempts)).WithCause(lastErr)
}

func isRetryable(err error) bool {
	var pe *pipelineerrors.Error
	if errors.As(err, &pe) {
		return pe.Kind == pipelineerrors.FtpDropped
	}
	return false
}
