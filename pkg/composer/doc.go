// Package composer implements the package-manager strategy.
//
// [Selector] probes a fixed list of candidate executables with --version and
// picks the first that answers. [Installer] writes composer.json into the
// install root and runs `composer install` variants there until one exits 0:
//
//	composer install --no-dev --optimize-autoloader --no-interaction
//	php composer.phar install --no-dev --optimize-autoloader --no-interaction
//	<discovered> install --no-dev --optimize-autoloader --no-interaction
//
// Commands run with their working directory set to the install root; the
// process working directory is never touched. A zero exit without
// vendor/autoload.php on disk is reported as ENTRY_POINT_MISSING so the
// pipeline falls back to the archive strategy.
package composer
