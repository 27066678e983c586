/*
Copyright (c) 2013-2018 The btcsuite developers
Copyright (c) 2015-2016 The Decred developers
Copyright (c) 2013-2014 Conformal Systems LLC.
Use of this source code is governed by an ISC
license that can be found in the LICENSE file.

Gxcpeerd is a lightweight GXC peer node written in Go. It keeps a fully
validated copy of the chain, syncs it from a trusted upstream node, and
serves and relays blocks to other peers.

The default options are sane for most users. This means gxcpeerd will work
'out of the box' against an upstream node on localhost. However, there are
also a wide variety of flags that can be used to control it.

Usage:

	gxcpeerd [OPTIONS] [start | sync | verify | stats | initconfig | connect <address>]

For an up-to-date help message:

	gxcpeerd --help

The long form of all option flags (except -C) can be specified in a configuration
file that is automatically parsed when gxcpeerd starts up. By default, the
configuration file is located at ~/.gxcpeerd/gxcpeerd.conf on POSIX-style operating
systems and %LOCALAPPDATA%\gxcpeerd\gxcpeerd.conf on Windows. The -C (--configfile)
flag can be used to override this location. The initconfig subcommand writes
the options it is given to that file.
*/
package main
