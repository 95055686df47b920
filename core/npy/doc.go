// Package npy reads and writes the NumPy NPY array format.
//
// An NPY stream is a magic string, a version, a little-endian header length,
// a Python dict literal describing the array, and the raw element bytes:
//
//	\x93NUMPY <major> <minor> <len> {'descr': '<f4', 'fortran_order': False, 'shape': (2, 3), }
//
// Decoded arrays hold their elements as JSON-ready Go values so they can be
// turned into nested lists with [Array.ToList].
package npy
