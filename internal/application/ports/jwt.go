package ports

type Auth interface {
	GenerateToken(email, password string) (string, error)
}
