package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContactRepository interface {
	Create(ctx context.Context, req *domain.ContactRequest) (*domain.Contact, error)
	GetByID(ctx context.Context, id string) (*domain.Contact, error)
	List(ctx context.Context, f domain.ListFilter) ([]domain.Contact, int, error)
	Stats(ctx context.Context) (domain.Stats, error)
	MarkRead(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status *domain.Status, priority *domain.Priority, notes *string) (*domain.Contact, error)
	MarkSpam(ctx context.Context, id string) (changed bool, err error)
	AddReply(ctx context.Context, id, message, sentBy string) (*domain.Contact, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type contactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

const contactCols = `id::text, name, email, COALESCE(phone, ''), COALESCE(company, ''),
subject, message, project_type, budget, timeline,
status, priority, notes, is_spam, ip_address, user_agent,
replied_at, created_at, updated_at`

func scanContact(row pgx.Row) (*domain.Contact, error) {
	var c domain.Contact
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company,
		&c.Subject, &c.Message, &c.ProjectType, &c.Budget, &c.Timeline,
		&c.Status, &c.Priority, &c.Notes, &c.IsSpam, &c.IPAddress, &c.UserAgent,
		&c.RepliedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *contactRepository) Create(ctx context.Context, req *domain.ContactRequest) (*domain.Contact, error) {
	const q = `INSERT INTO contacts (
		id, name, email, phone, company,
		subject, message, project_type, budget, timeline,
		ip_address, user_agent
	) VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,$7,$8,$9,$10,$11,$12)
	RETURNING ` + contactCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanContact(r.pool.QueryRow(ctx, q,
		uuid.NewString(), req.Name, req.Email, req.Phone, req.Company,
		req.Subject, req.Message, req.ProjectType, req.Budget, req.Timeline,
		req.IPAddress, req.UserAgent,
	))
}

func (r *contactRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	const q = `SELECT ` + contactCols + ` FROM contacts WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanContact(r.pool.QueryRow(ctx, q, id))
	if err != nil || c == nil {
		return c, err
	}

	const rq = `SELECT id::text, message, COALESCE(sent_by::text, ''), sent_at
		FROM contact_replies WHERE contact_id = $1 ORDER BY sent_at`
	rows, err := r.pool.Query(ctx, rq, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var reply domain.ContactReply
		if err := rows.Scan(&reply.ID, &reply.Message, &reply.SentBy, &reply.SentAt); err != nil {
			return nil, err
		}
		c.Replies = append(c.Replies, reply)
	}
	return c, rows.Err()
}

// List returns one page of contacts matching f and the total match count.
func (r *contactRepository) List(ctx context.Context, f domain.ListFilter) ([]domain.Contact, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where, args := contactFilter(f)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + contactCols + ` FROM contacts` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, total, rows.Err()
}

func contactFilter(f domain.ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.IncludeSpam {
		conds = append(conds, "is_spam = false")
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Priority != nil {
		add("priority = $%d", *f.Priority)
	}
	if f.ProjectType != "" {
		add("project_type = $%d", f.ProjectType)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("(name ILIKE $%[1]d OR email ILIKE $%[1]d OR subject ILIKE $%[1]d OR message ILIKE $%[1]d)", "%"+escapeLike(s)+"%")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *contactRepository) Stats(ctx context.Context) (domain.Stats, error) {
	const q = `SELECT status, is_spam, count(*) FROM contacts GROUP BY status, is_spam`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	stats := domain.Stats{ByStatus: map[domain.Status]int{}}
	for _, st := range domain.Statuses {
		stats.ByStatus[st] = 0
	}

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status domain.Status
			spam   bool
			n      int
		)
		if err := rows.Scan(&status, &spam, &n); err != nil {
			return stats, err
		}
		if spam {
			stats.Spam += n
			continue
		}
		stats.ByStatus[status] += n
		stats.Total += n
	}
	return stats, rows.Err()
}

func (r *contactRepository) MarkRead(ctx context.Context, id string) error {
	const q = `UPDATE contacts SET status = 'read', updated_at = now() WHERE id = $1 AND status = 'new'`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *contactRepository) UpdateStatus(ctx context.Context, id string, status *domain.Status, priority *domain.Priority, notes *string) (*domain.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	const q = `
		UPDATE contacts
		SET
			status     = COALESCE($2, status),
			priority   = COALESCE($3, priority),
			notes      = COALESCE($4, notes),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + contactCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanContact(r.pool.QueryRow(ctx, q, id, status, priority, notes))
}

// MarkSpam flags the contact and archives it. changed is false when the
// contact was already spam; pgx.ErrNoRows means there is no such contact.
func (r *contactRepository) MarkSpam(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, pgx.ErrNoRows
	}

	const q = `
		WITH target AS (SELECT id, is_spam FROM contacts WHERE id = $1),
		updated AS (
			UPDATE contacts c SET is_spam = true, status = 'archived', updated_at = now()
			FROM target t WHERE c.id = t.id AND NOT t.is_spam
			RETURNING c.id
		)
		SELECT EXISTS (SELECT 1 FROM target), EXISTS (SELECT 1 FROM updated)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var found, changed bool
	if err := r.pool.QueryRow(ctx, q, id).Scan(&found, &changed); err != nil {
		return false, err
	}
	if !found {
		return false, pgx.ErrNoRows
	}
	return changed, nil
}

// AddReply records a sent reply and moves the contact to replied.
func (r *contactRepository) AddReply(ctx context.Context, id, message, sentBy string) (*domain.Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c *domain.Contact
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const ins = `INSERT INTO contact_replies (id, contact_id, message, sent_by)
			VALUES ($1, $2, $3, NULLIF($4, '')::uuid)`
		if _, err := tx.Exec(ctx, ins, uuid.NewString(), id, message, sentBy); err != nil {
			return err
		}

		const upd = `UPDATE contacts
			SET status = 'replied', replied_at = now(), updated_at = now()
			WHERE id = $1
			RETURNING ` + contactCols
		var err error
		c, err = scanContact(tx.QueryRow(ctx, upd, id))
		return err
	})
	return c, err
}

func (r *contactRepository) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	const q = `DELETE FROM contacts WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
