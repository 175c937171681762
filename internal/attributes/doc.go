// Package attributes extracts the numeric coordinates that the MatrixScreener
// data exporter encodes in file and folder names.
//
// Every coordinate is written as a tag made of two dashes and a key letter,
// immediately followed by a zero-padded decimal number:
//
//	slide--S00/chamber--U01--V02/field--X03--Y00/image--...--Z00--C01.ome.tif
//
// Only the seven keys the hierarchy needs are recognised (S, U, V, X, Y, Z, C).
// A Set records presence separately from value, so an absent key never reads
// as an explicit zero.
package attributes
