/*
Package pagecache implements a concurrent set-associative page cache in pure Go.
It sits between compute workers and a slow backing store, grows online by
linear hashing while lookups proceed, and supports frequency-biased, LRU and
FIFO replacement with an optional per-cell shadow history.
*/
package pagecache
