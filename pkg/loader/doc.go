// Package loader verifies that an entry point actually provides the library.
//
// The [Loader] walks the candidate entry points produced by the locator and
// asks a [Prober] whether each one defines the marker symbol
// (PhpOffice\PhpSpreadsheet\Spreadsheet by default). The first success is
// remembered for the life of the Loader; failures are not, so a later call
// after an install probes again.
//
// Three probers exist:
//
//   - [PHPProber] runs the PHP interpreter, requires the entry point and
//     reflects the symbol's defining file.
//   - [StaticProber] resolves the symbol without PHP: Composer's classmap,
//     then its PSR-4 map, then the archive shim convention.
//   - [ChainProber] tries PHP and falls back to the static probe when no
//     interpreter is installed.
package loader
