package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Radio daemon: MRF49XA on SPI, host link on a serial
 *		port, pseudo terminal or TCP.
 *
 *---------------------------------------------------------------*/

import (
	mrf49xa "github.com/doismellburning/mrf49xa/src"
)

func main() {
	mrf49xa.DaemonMain()
}
