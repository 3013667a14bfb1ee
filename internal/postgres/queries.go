package postgres

const messageColumns = `
	m.id, m.sender_id, m.receiver_id, s.username, r.username, m.body, m.created_at, m.is_read
`

const (
	QueryCreateMessage = `
		WITH ins AS (
			INSERT INTO messages (sender_id, receiver_id, body)
			VALUES ($1, $2, $3)
			RETURNING id, sender_id, receiver_id, body, created_at, is_read
		)
		SELECT m.id, m.sender_id, m.receiver_id, s.username, r.username, m.body, m.created_at, m.is_read
		FROM ins m
		JOIN users s ON s.id = m.sender_id
		JOIN users r ON r.id = m.receiver_id
	`
	QueryGetMessageByID = `
		SELECT` + messageColumns + `
		FROM messages m
		JOIN users s ON s.id = m.sender_id
		JOIN users r ON r.id = m.receiver_id
		WHERE m.id = $1
	`
	// newest first; оба направления диалога
	QueryListMessagesBetween = `
		SELECT` + messageColumns + `
		FROM messages m
		JOIN users s ON s.id = m.sender_id
		JOIN users r ON r.id = m.receiver_id
		WHERE (m.sender_id = $1 AND m.receiver_id = $2)
		   OR (m.sender_id = $2 AND m.receiver_id = $1)
		ORDER BY m.created_at DESC, m.id DESC
		OFFSET $3
		LIMIT $4
	`
	QueryCountMessagesBetween = `
		SELECT count(*)
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
	`
	QueryMarkMessageRead = `
		UPDATE messages
		SET is_read = TRUE
		WHERE id = $1 AND receiver_id = $2 AND is_read = FALSE
	`
	QueryMarkConversationRead = `
		UPDATE messages
		SET is_read = TRUE
		WHERE sender_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`
	QueryUnreadCount = `
		SELECT count(*)
		FROM messages
		WHERE receiver_id = $1 AND is_read = FALSE
	`
	QueryListConversations = `
		WITH pairs AS (
			SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS partner_id,
			       id, sender_id, receiver_id, body, created_at, is_read
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
		), last AS (
			SELECT DISTINCT ON (partner_id) *
			FROM pairs
			ORDER BY partner_id, created_at DESC, id DESC
		)
		SELECT l.partner_id, u.username, u.bio, u.profile_pic,
		       l.id, l.sender_id, l.receiver_id, l.body, l.created_at, l.is_read,
		       (SELECT count(*) FROM messages x
		         WHERE x.sender_id = l.partner_id AND x.receiver_id = $1 AND x.is_read = FALSE) AS unread
		FROM last l
		JOIN users u ON u.id = l.partner_id
		ORDER BY l.created_at DESC, l.id DESC
	`

	QueryGetUserByID = `
		SELECT id, username, bio, profile_pic
		FROM users
		WHERE id = $1
	`
)
