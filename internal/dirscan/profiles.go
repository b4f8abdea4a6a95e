package dirscan

import "github.com/jonesrussell/torcrawl/internal/domain"

// Path profiles. Quick covers the highest-yield artifacts, standard the
// common web misconfigurations, full adds the long tail of framework and
// panel paths.
var (
	quickPaths = []string{
		".env",
		".git/HEAD",
		".git/config",
		".htpasswd",
		"robots.txt",
		"phpinfo.php",
		"server-status",
		"wp-config.php",
		"backup.sql",
		"admin/",
	}

	standardPaths = append(append([]string{}, quickPaths...),
		".git/index",
		".svn/entries",
		".hg/requires",
		".htaccess",
		".well-known/security.txt",
		"sitemap.xml",
		"phpmyadmin/",
		"adminer.php",
		"wp-login.php",
		"xmlrpc.php",
		"config.php",
		"configuration.php",
		"database.sql",
		"dump.sql",
		"backup.zip",
	)

	fullPaths = append(append([]string{}, standardPaths...),
		".env.local",
		".env.backup",
		".env.production",
		".DS_Store",
		".ssh/id_rsa",
		".bash_history",
		"id_rsa",
		"server-info",
		"info.php",
		"test.php",
		"swagger.json",
		"api-docs/",
		"api/swagger.json",
		"actuator/env",
		"debug/pprof/",
		"wp-json/wp/v2/users",
		"administrator/",
		"cpanel/",
		"manager/html",
		"console/",
		"backup.tar.gz",
		"site.bak",
		"web.config",
		"settings.py",
		"app.log",
		"error.log",
		"access.log",
		"db.sqlite3",
		"users.db",
	)
)

// PathsForProfile returns the path list for a profile name. Unknown names
// fall back to the standard profile.
func PathsForProfile(profile string) []string {
	switch profile {
	case domain.ProfileQuick:
		return quickPaths
	case domain.ProfileFull:
		return fullPaths
	default:
		return standardPaths
	}
}
