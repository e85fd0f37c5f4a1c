package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/models"
)

// ErrNotFound is returned when a domain row does not exist.
var ErrNotFound = errors.New("domain not found")

const domainColumns = `id, registrar_id, name, owner, registered_on,
	       is_expired, is_locked, auto_renew, whois_guard, is_premium, uses_own_dns,
	       expiry_date, name_server1, name_server2, blocked,
	       description, category, is_used, is_defense, is_link_alt, group_id,
	       active, created_at, updated_at`

type DomainRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewDomainRepository(db *sql.DB, log logger.Logger) *DomainRepository {
	return &DomainRepository{
		db:     db,
		logger: log,
	}
}

func (r *DomainRepository) Create(ctx context.Context, domain *models.Domain) error {
	now := time.Now()
	domain.CreatedAt = now
	domain.UpdatedAt = now

	query := `
		INSERT INTO domains (
			registrar_id, name, owner, registered_on,
			is_expired, is_locked, auto_renew, whois_guard, is_premium, uses_own_dns,
			expiry_date, name_server1, name_server2, blocked,
			description, category, is_used, is_defense, is_link_alt, group_id,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		          $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx,
		query,
		domain.RegistrarID,
		domain.Name,
		domain.Owner,
		domain.RegisteredOn,
		domain.IsExpired,
		domain.IsLocked,
		domain.AutoRenew,
		domain.WhoisGuard,
		domain.IsPremium,
		domain.UsesOwnDNS,
		domain.ExpiryDate,
		domain.NameServer1,
		domain.NameServer2,
		domain.Blocked,
		domain.Description,
		domain.Category,
		domain.IsUsed,
		domain.IsDefense,
		domain.IsLinkAlt,
		domain.GroupID,
		domain.Active,
		domain.CreatedAt,
		domain.UpdatedAt,
	).Scan(&domain.ID)

	if err != nil {
		return fmt.Errorf("insert domain: %w", err)
	}

	return nil
}

func (r *DomainRepository) GetByID(ctx context.Context, id int64) (*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE id = $1`

	domain, err := scanDomain(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query domain: %w", err)
	}
	return domain, nil
}

// FindByRegistrarID returns the domain with the given external registrar ID,
// or (nil, nil) when no row matches.
func (r *DomainRepository) FindByRegistrarID(ctx context.Context, registrarID string) (*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE registrar_id = $1`

	domain, err := scanDomain(r.db.QueryRowContext(ctx, query, registrarID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query domain by registrar id: %w", err)
	}
	return domain, nil
}

// FindByName returns the first domain with the given name (names are not
// globally unique; lowest id wins), or (nil, nil) when no row matches.
func (r *DomainRepository) FindByName(ctx context.Context, name string) (*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE LOWER(name) = LOWER($1) ORDER BY id LIMIT 1`

	domain, err := scanDomain(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query domain by name: %w", err)
	}
	return domain, nil
}

// ListAll returns every domain ordered by id ascending, so repeated sync runs
// touch rows in the same order.
func (r *DomainRepository) ListAll(ctx context.Context) ([]models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	return scanDomainRows(rows)
}

// ListUsed returns domains with is_used set, ordered by name.
func (r *DomainRepository) ListUsed(ctx context.Context) ([]models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE is_used = TRUE ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query used domains: %w", err)
	}
	defer rows.Close()

	return scanDomainRows(rows)
}

// UsedNames returns the names of used domains, ordered by name. Consumed by
// the external content-filter script.
func (r *DomainRepository) UsedNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM domains WHERE is_used = TRUE ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query used names: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if scanErr := rows.Scan(&name); scanErr != nil {
			return nil, fmt.Errorf("scan name: %w", scanErr)
		}
		names = append(names, name)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate names: %w", rowsErr)
	}
	return names, nil
}

// ListFilter holds pagination and filter params for ListPaginated.
type ListFilter struct {
	Limit     int
	Offset    int
	SortBy    string // name, expiry_date, created_at, is_used
	SortOrder string // asc, desc
	Search    string // ILIKE on name
	Status    string // all, active, expired
	Used      *bool  // nil = all
	Blocked   *bool  // nil = all
}

// Count returns the total number of domains matching the filter (ignores Limit/Offset/Sort).
func (r *DomainRepository) Count(ctx context.Context, filter ListFilter) (int, error) {
	whereClause, args := buildListWhere(filter)
	query := `SELECT COUNT(*) FROM domains WHERE 1=1` + whereClause

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count domains: %w", err)
	}
	return count, nil
}

// ListPaginated returns domains with pagination, sorting, and filtering.
func (r *DomainRepository) ListPaginated(ctx context.Context, filter ListFilter) ([]models.Domain, error) {
	whereClause, whereArgs := buildListWhere(filter)
	orderClause := buildListOrder(filter)
	argCount := len(whereArgs)
	limitPlaceholder := strconv.Itoa(argCount + 1)
	offsetPlaceholder := strconv.Itoa(argCount + 2)
	// whereClause and orderClause use whitelisted column names; limit/offset are integers
	query := `SELECT ` + domainColumns + `
		FROM domains
		WHERE 1=1` + whereClause + orderClause + `
		LIMIT $` + limitPlaceholder + ` OFFSET $` + offsetPlaceholder

	args := append(append([]any{}, whereArgs...), filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	return scanDomainRows(rows)
}

func buildListWhere(filter ListFilter) (whereClause string, args []any) {
	var clauses []string
	args = make([]any, 0)
	pos := 1

	if filter.Search != "" {
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", pos))
		args = append(args, "%"+filter.Search+"%")
		pos++
	}
	switch filter.Status {
	case "active":
		clauses = append(clauses, "is_expired = FALSE")
	case "expired":
		clauses = append(clauses, "is_expired = TRUE")
	}
	if filter.Used != nil {
		clauses = append(clauses, fmt.Sprintf("is_used = $%d", pos))
		args = append(args, *filter.Used)
		pos++
	}
	if filter.Blocked != nil {
		clauses = append(clauses, fmt.Sprintf("blocked = $%d", pos))
		args = append(args, *filter.Blocked)
	}

	if len(clauses) == 0 {
		return "", args
	}
	whereClause = " AND " + strings.Join(clauses, " AND ")
	return whereClause, args
}

func buildListOrder(filter ListFilter) string {
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "name"
	}
	validSort := map[string]bool{
		"name": true, "expiry_date": true, "created_at": true, "is_used": true,
	}
	if !validSort[sortBy] {
		sortBy = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", sortBy, order)
}

func (r *DomainRepository) Update(ctx context.Context, domain *models.Domain) error {
	domain.UpdatedAt = time.Now()

	query := `
		UPDATE domains
		SET registrar_id = $2, name = $3, owner = $4, registered_on = $5,
		    is_expired = $6, is_locked = $7, auto_renew = $8, whois_guard = $9,
		    is_premium = $10, uses_own_dns = $11, expiry_date = $12,
		    name_server1 = $13, name_server2 = $14, blocked = $15,
		    description = $16, category = $17, is_used = $18, is_defense = $19,
		    is_link_alt = $20, group_id = $21, active = $22, updated_at = $23
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx,
		query,
		domain.ID,
		domain.RegistrarID,
		domain.Name,
		domain.Owner,
		domain.RegisteredOn,
		domain.IsExpired,
		domain.IsLocked,
		domain.AutoRenew,
		domain.WhoisGuard,
		domain.IsPremium,
		domain.UsesOwnDNS,
		domain.ExpiryDate,
		domain.NameServer1,
		domain.NameServer2,
		domain.Blocked,
		domain.Description,
		domain.Category,
		domain.IsUsed,
		domain.IsDefense,
		domain.IsLinkAlt,
		domain.GroupID,
		domain.Active,
		domain.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("update domain: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateBatch updates multiple domains in a single transaction. A failure
// rolls back the whole batch; previously committed batches are unaffected.
func (r *DomainRepository) UpdateBatch(ctx context.Context, domains []*models.Domain) (err error) {
	if len(domains) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("failed to rollback transaction",
					logger.Error(rbErr),
				)
			}
		}
	}()

	query := `
		UPDATE domains
		SET registrar_id = $2, name = $3, owner = $4, registered_on = $5,
		    is_expired = $6, is_locked = $7, auto_renew = $8, whois_guard = $9,
		    is_premium = $10, uses_own_dns = $11, expiry_date = $12,
		    name_server1 = $13, name_server2 = $14, blocked = $15,
		    active = $16, updated_at = $17
		WHERE id = $1
	`

	now := time.Now()
	for _, domain := range domains {
		domain.UpdatedAt = now
		if _, execErr := tx.ExecContext(ctx,
			query,
			domain.ID,
			domain.RegistrarID,
			domain.Name,
			domain.Owner,
			domain.RegisteredOn,
			domain.IsExpired,
			domain.IsLocked,
			domain.AutoRenew,
			domain.WhoisGuard,
			domain.IsPremium,
			domain.UsesOwnDNS,
			domain.ExpiryDate,
			domain.NameServer1,
			domain.NameServer2,
			domain.Blocked,
			domain.Active,
			domain.UpdatedAt,
		); execErr != nil {
			err = fmt.Errorf("update domain %q: %w", domain.Name, execErr)
			return err
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit transaction: %w", commitErr)
		return err
	}

	return nil
}

func (r *DomainRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkUsedByNames sets is_used on every domain whose name appears in names
// (case-insensitive). Returns how many names matched a row and how many rows
// actually flipped.
func (r *DomainRepository) MarkUsedByNames(ctx context.Context, names []string) (matched, updated int, err error) {
	if len(names) == 0 {
		return 0, 0, nil
	}

	keys := make([]string, 0, len(names))
	for _, n := range names {
		if key := models.NameKey(n); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return 0, 0, nil
	}

	if err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM domains WHERE LOWER(name) = ANY($1)`,
		pq.Array(keys),
	).Scan(&matched); err != nil {
		return 0, 0, fmt.Errorf("count matching domains: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE domains SET is_used = TRUE, updated_at = NOW()
		 WHERE LOWER(name) = ANY($1) AND is_used = FALSE`,
		pq.Array(keys),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("mark domains used: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("get rows affected: %w", err)
	}

	return matched, int(affected), nil
}

func scanDomainRows(rows *sql.Rows) ([]models.Domain, error) {
	domains := make([]models.Domain, 0)
	for rows.Next() {
		domain, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, *domain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return domains, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDomain(row rowScanner) (*models.Domain, error) {
	var domain models.Domain
	if err := row.Scan(
		&domain.ID,
		&domain.RegistrarID,
		&domain.Name,
		&domain.Owner,
		&domain.RegisteredOn,
		&domain.IsExpired,
		&domain.IsLocked,
		&domain.AutoRenew,
		&domain.WhoisGuard,
		&domain.IsPremium,
		&domain.UsesOwnDNS,
		&domain.ExpiryDate,
		&domain.NameServer1,
		&domain.NameServer2,
		&domain.Blocked,
		&domain.Description,
		&domain.Category,
		&domain.IsUsed,
		&domain.IsDefense,
		&domain.IsLinkAlt,
		&domain.GroupID,
		&domain.Active,
		&domain.CreatedAt,
		&domain.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &domain, nil
}
