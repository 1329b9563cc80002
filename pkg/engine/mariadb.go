package engine

// newMariaDB builds the MariaDB adapter: the MySQL-family implementation
// under MariaDB's renamed tool surface.
func newMariaDB() *mysqlEngine {
	return &mysqlEngine{
		baseServer:    baseServer{kind: KindMariaDB, serverBinary: "mariadbd", clientBinary: "mariadb"},
		adminBinary:   "mariadb-admin",
		dumpBinary:    "mariadb-dump",
		scheme:        "mariadb",
		installBinary: "mariadb-install-db",
	}
}
