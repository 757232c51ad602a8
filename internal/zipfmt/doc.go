// Package zipfmt encodes and decodes the fixed-layout ZIP records used by ikv
// archives: local file headers, central directory headers, the end of central
// directory record and its Zip64 variant.
//
// All functions are pure. Timestamps, version fields and attributes are always
// written as zero; the format never stores real modification times.
package zipfmt
