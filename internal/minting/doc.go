// Package minting mints the initial copies of a book's asset class, granting
// the publisher wallet the minter role first when the class lacks it.
package minting
