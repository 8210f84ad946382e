package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "opd"
	pgPassword = "opd-test"
	pgDatabase = "opdtest"
)

// postgresContainer is a throwaway database started with the docker CLI.
type postgresContainer struct {
	id      string
	connStr string
}

// Stop removes the container unless OPD_KEEP_TEST_DB is set, which leaves it
// running for inspection after a failed run.
func (pc *postgresContainer) Stop() {
	if os.Getenv("OPD_KEEP_TEST_DB") != "" {
		fmt.Fprintf(os.Stderr, "keeping test database %s at %s\n", pc.id, pc.connStr)
		return
	}
	_ = exec.Command("docker", "rm", "-f", pc.id).Run()
}

func startPostgresContainer(ctx context.Context) (*postgresContainer, error) {
	port, err := freeLocalPort()
	if err != nil {
		return nil, fmt.Errorf("reserve port: %w", err)
	}

	name := fmt.Sprintf("opd-integration-%d", port)
	_ = exec.CommandContext(ctx, "docker", "rm", "-f", name).Run()

	args := []string{
		"run", "-d", "--rm",
		"--name", name,
		"--label", "opd.purpose=integration-test",
		"-p", fmt.Sprintf("127.0.0.1:%d:5432", port),
		"-e", "POSTGRES_USER=" + pgUser,
		"-e", "POSTGRES_PASSWORD=" + pgPassword,
		"-e", "POSTGRES_DB=" + pgDatabase,
		pgImage,
		// Billing tests rely on serialization conflicts, not on durability.
		"-c", "fsync=off",
		"-c", "max_connections=200",
	}
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("docker run %s: %w: %s", pgImage, err, strings.TrimSpace(string(out)))
	}

	pc := &postgresContainer{
		id: strings.TrimSpace(string(out)),
		connStr: fmt.Sprintf("postgres://%s:%s@127.0.0.1:%d/%s?sslmode=disable",
			pgUser, pgPassword, port, pgDatabase),
	}
	if err := awaitReady(ctx, pc.connStr, 45*time.Second); err != nil {
		pc.Stop()
		return nil, err
	}
	return pc, nil
}

func freeLocalPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// awaitReady retries a ping until the server accepts connections. The
// alpine image restarts once after initdb, so a single success is not taken
// as ready until a second ping also passes.
func awaitReady(ctx context.Context, connStr string, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	successes := 0
	var lastErr error
	for {
		if lastErr = ping(ctx, connStr); lastErr == nil {
			successes++
			if successes == 2 {
				return nil
			}
		} else {
			successes = 0
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %v", limit, lastErr)
		case <-ticker.C:
		}
	}
}

func ping(ctx context.Context, connStr string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return err
	}
	defer pool.Close()
	return pool.Ping(ctx)
}
