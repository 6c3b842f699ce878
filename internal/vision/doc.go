// Package vision holds the image collaborators used by the resolver.
//
// [ProxyOCR] sends photo bytes to an OCR service and returns the recognized text lines.
// [DHasher] computes a 64-bit difference hash of a photo; two hashes are compared with
// [Distance], the number of differing bits. [FingerprintStore] keeps the hashes of confirmed
// releases and answers nearest-neighbor queries with a stable scan, so the oldest entry wins ties.
package vision
