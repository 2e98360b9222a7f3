package archive

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixnow-app/fixnow/internal/engine"
)

// Archive persists an audit trail of jobs, bids and timeline items to
// Postgres. It follows the engine's notification stream and writes rows
// best-effort: a failed insert is logged and skipped, never retried, and
// never blocks the engine.
type Archive struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and ensures the audit tables exist.
func Open(ctx context.Context, dsn string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	a := &Archive{pool: pool}
	a.ensureJobsTable(ctx)
	a.ensureBidsTable(ctx)
	a.ensureTimelineTable(ctx)
	log.Println("[archive] connected to Postgres")
	return a, nil
}

// Close releases the pool.
func (a *Archive) Close() {
	a.pool.Close()
}

// ensureJobsTable creates the jobs audit table if missing
func (a *Archive) ensureJobsTable(ctx context.Context) {
	_, err := a.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS jobs (
            id TEXT PRIMARY KEY,
            client_id TEXT NOT NULL,
            category TEXT NOT NULL,
            sub_problem TEXT,
            urgency TEXT,
            status TEXT NOT NULL,
            assigned_provider_id TEXT,
            final_price BIGINT,
            created_at TIMESTAMP WITH TIME ZONE NOT NULL,
            updated_at TIMESTAMP WITH TIME ZONE NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_jobs_client ON jobs(client_id);
        CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
    `)
	if err != nil {
		log.Printf("[archive] failed to ensure jobs table: %v", err)
	}
}

// ensureBidsTable creates the bids audit table if missing
func (a *Archive) ensureBidsTable(ctx context.Context) {
	_, err := a.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS bids (
            job_id TEXT NOT NULL,
            provider_id TEXT NOT NULL,
            price BIGINT NOT NULL,
            message TEXT,
            version INTEGER NOT NULL,
            submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
            updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
            PRIMARY KEY (job_id, provider_id)
        );
        CREATE INDEX IF NOT EXISTS idx_bids_provider ON bids(provider_id);
    `)
	if err != nil {
		log.Printf("[archive] failed to ensure bids table: %v", err)
	}
}

// ensureTimelineTable creates the timeline audit table if missing
func (a *Archive) ensureTimelineTable(ctx context.Context) {
	_, err := a.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS timeline_items (
            id TEXT PRIMARY KEY,
            job_id TEXT NOT NULL,
            kind TEXT NOT NULL,
            seq BIGINT NOT NULL,
            sender_id TEXT,
            sender_role TEXT,
            content TEXT,
            media_url TEXT,
            media_stage TEXT,
            event_name TEXT,
            created_at TIMESTAMP WITH TIME ZONE NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_timeline_job_seq ON timeline_items(job_id, seq);
    `)
	if err != nil {
		log.Printf("[archive] failed to ensure timeline table: %v", err)
	}
}

// Follow subscribes to the store and mirrors every change into Postgres
// until the subscription is closed. Call in its own goroutine via `go`.
func (a *Archive) Follow(store *engine.OrderStore, sub *engine.Subscription) {
	for n := range sub.C() {
		switch n.Type {
		case engine.NotificationJobCreated, engine.NotificationStatusChanged:
			job, err := store.GetJob(n.JobID)
			if err != nil {
				continue
			}
			a.recordJob(job, n.At)
		case engine.NotificationBidReceived, engine.NotificationBidModified:
			if n.Bid != nil {
				a.recordBid(*n.Bid)
			}
		case engine.NotificationTimelineItem:
			if n.Item != nil {
				a.recordItem(*n.Item)
			}
		}
	}
}

func (a *Archive) recordJob(job engine.Job, at time.Time) {
	_, err := a.pool.Exec(context.Background(), `
        INSERT INTO jobs (id, client_id, category, sub_problem, urgency, status, assigned_provider_id, final_price, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            assigned_provider_id = EXCLUDED.assigned_provider_id,
            final_price = EXCLUDED.final_price,
            updated_at = EXCLUDED.updated_at`,
		job.ID, job.Client.ID, job.ServiceData.Category, job.ServiceData.SubProblem,
		string(job.ServiceData.UrgencyLevel), string(job.Status),
		job.AssignedProviderID, job.FinalPrice, job.CreatedAt, at,
	)
	if err != nil {
		log.Printf("[archive] job %s: %v", job.ID, err)
	}
}

func (a *Archive) recordBid(bid engine.Bid) {
	_, err := a.pool.Exec(context.Background(), `
        INSERT INTO bids (job_id, provider_id, price, message, version, submitted_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (job_id, provider_id) DO UPDATE SET
            price = EXCLUDED.price,
            message = EXCLUDED.message,
            version = EXCLUDED.version,
            updated_at = EXCLUDED.updated_at`,
		bid.JobID, bid.ProviderID, bid.Price, bid.Message, bid.Version, bid.SubmittedAt, bid.UpdatedAt,
	)
	if err != nil {
		log.Printf("[archive] bid %s/%s: %v", bid.JobID, bid.ProviderID, err)
	}
}

func (a *Archive) recordItem(item engine.TimelineItem) {
	_, err := a.pool.Exec(context.Background(), `
        INSERT INTO timeline_items (id, job_id, kind, seq, sender_id, sender_role, content, media_url, media_stage, event_name, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO NOTHING`,
		item.ID, item.JobID, string(item.Kind), item.Seq, item.SenderID, string(item.SenderRole),
		item.Content, item.URL, string(item.Stage), item.Code, item.Timestamp,
	)
	if err != nil {
		log.Printf("[archive] timeline %s: %v", item.ID, err)
	}
}
