package container

const (
	InsertContainer = `
		INSERT INTO containers (public_id, display_name, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	InsertFile = `
		INSERT INTO container_files
		  (uuid, container_id, position, original_name, clean_name, extension, storage_key, url, size_bytes, category, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	SelectContainerByPublicID = `
		SELECT id, public_id, display_name, created_at, expires_at
		FROM containers
		WHERE public_id = $1
	`
	SelectContainerByFileID = `
		SELECT c.id, c.public_id, c.display_name, c.created_at, c.expires_at
		FROM containers c
		JOIN container_files f ON f.container_id = c.id
		WHERE f.uuid = $1
	`
	SelectExpiredContainers = `
		SELECT id, public_id, display_name, created_at, expires_at
		FROM containers
		WHERE expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`
	SelectFilesByContainerIDs = `
		SELECT container_id, uuid, position, original_name, clean_name, extension, storage_key, url, size_bytes, category, mime_type
		FROM container_files
		WHERE container_id = ANY($1)
		ORDER BY container_id, position
	`
	DeleteContainer = `
		DELETE FROM containers
		WHERE id = $1
	`
)
